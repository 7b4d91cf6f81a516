package lifecycle_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/lifecycle"
)

var t0 = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func newTracker() *lifecycle.Tracker {
	return lifecycle.NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func candidate(event string, dir domain.Direction, roiPct, net float64) domain.ArbitrageCandidate {
	return domain.ArbitrageCandidate{
		EventID:   event,
		EventName: event + " game",
		Direction: dir,
		ROIPct:    roiPct,
		NetProfit: net,
	}
}

func cycle(i int) time.Time {
	return t0.Add(time.Duration(i-1) * 15 * time.Second)
}

func TestTracker_FiveCyclesThenAbsent(t *testing.T) {
	tr := newTracker()
	pcts := []float64{2.0, 3.5, 1.2, 4.1, 2.2}

	for i, pct := range pcts {
		res, err := tr.Observe(cycle(i+1), []domain.ArbitrageCandidate{
			candidate("ev1", domain.DirectionFirstOnA, pct, pct*10),
		})
		require.NoError(t, err)
		assert.Empty(t, res.Closed)
		if i == 0 {
			assert.Len(t, res.Opened, 1)
		} else {
			assert.Len(t, res.Updated, 1)
		}
	}

	res, err := tr.Observe(cycle(6), nil)
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)

	c := res.Closed[0]
	assert.Equal(t, domain.OpportunityKey{EventID: "ev1", Direction: domain.DirectionFirstOnA}, c.Key)
	assert.Equal(t, cycle(5).Sub(cycle(1)), c.Duration)
	assert.Equal(t, cycle(1), c.StartedAt)
	assert.Equal(t, cycle(5), c.EndedAt)
	assert.Equal(t, cycle(6), c.ClosedAt)
	assert.Equal(t, 4.1, c.PeakNetPct)
	assert.Equal(t, 1.2, c.TroughNetPct)
	assert.Equal(t, 41.0, c.PeakNetProfitUSD)
	assert.Equal(t, 5, c.Observations)
	assert.NotEmpty(t, c.ID)
	assert.Zero(t, tr.Len())

	res, err = tr.Observe(cycle(7), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Closed, "closed records are emitted once")
}

func TestTracker_SingleCycleIsZeroDuration(t *testing.T) {
	tr := newTracker()

	_, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{candidate("ev1", domain.DirectionSecondOnA, 1.5, 3)})
	require.NoError(t, err)
	res, err := tr.Observe(cycle(2), nil)
	require.NoError(t, err)

	require.Len(t, res.Closed, 1)
	assert.Zero(t, res.Closed[0].Duration)
	assert.Equal(t, 1.5, res.Closed[0].PeakNetPct)
	assert.Equal(t, 1.5, res.Closed[0].TroughNetPct)
}

func TestTracker_KeysAreIndependent(t *testing.T) {
	tr := newTracker()

	_, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionFirstOnA, 2, 2),
		candidate("ev1", domain.DirectionSecondOnA, 3, 3),
	})
	require.NoError(t, err)

	res, err := tr.Observe(cycle(2), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionSecondOnA, 2.5, 2.5),
		candidate("ev2", domain.DirectionFirstOnA, 1, 1),
	})
	require.NoError(t, err)

	require.Len(t, res.Closed, 1)
	assert.Equal(t, domain.DirectionFirstOnA, res.Closed[0].Key.Direction)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, "ev2", res.Opened[0].Key.EventID)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, 3.0, res.Updated[0].PeakNetPct)
	assert.Equal(t, 2.5, res.Updated[0].TroughNetPct)
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_ReopenStartsNewWindow(t *testing.T) {
	tr := newTracker()
	c := candidate("ev1", domain.DirectionFirstOnA, 2, 2)

	_, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{c})
	require.NoError(t, err)
	_, err = tr.Observe(cycle(2), nil)
	require.NoError(t, err)
	res, err := tr.Observe(cycle(3), []domain.ArbitrageCandidate{c})
	require.NoError(t, err)

	require.Len(t, res.Opened, 1)
	assert.Equal(t, cycle(3), res.Opened[0].StartedAt)
}

func TestTracker_DuplicateKeyKeepsBest(t *testing.T) {
	tr := newTracker()

	res, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionFirstOnA, 1, 1),
		candidate("ev1", domain.DirectionFirstOnA, 4, 4),
	})
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, 4.0, res.Opened[0].PeakNetPct)
}

func TestTracker_RejectsOutOfOrderCycle(t *testing.T) {
	tr := newTracker()

	_, err := tr.Observe(cycle(2), []domain.ArbitrageCandidate{candidate("ev1", domain.DirectionFirstOnA, 2, 2)})
	require.NoError(t, err)

	_, err = tr.Observe(cycle(1), nil)
	assert.ErrorIs(t, err, domain.ErrCycleOutOfOrder)
	assert.Equal(t, 1, tr.Len(), "rejected cycle must not close anything")
}

func TestTracker_ActiveRunningDuration(t *testing.T) {
	tr := newTracker()

	_, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{candidate("ev2", domain.DirectionFirstOnA, 2, 2)})
	require.NoError(t, err)
	_, err = tr.Observe(cycle(2), []domain.ArbitrageCandidate{
		candidate("ev2", domain.DirectionFirstOnA, 2, 2),
		candidate("ev1", domain.DirectionFirstOnA, 2, 2),
	})
	require.NoError(t, err)

	active := tr.Active(cycle(2).Add(5 * time.Second))
	require.Len(t, active, 2)
	assert.Equal(t, "ev2", active[0].Key.EventID)
	assert.Equal(t, 20*time.Second, active[0].Running)
	assert.Equal(t, 15*time.Second, active[0].Duration())
	assert.Equal(t, 5*time.Second, active[1].Running)
}

func TestTracker_InterruptClosesEveryWindow(t *testing.T) {
	tr := newTracker()

	_, err := tr.Observe(cycle(1), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionFirstOnA, 2.0, 20),
		candidate("ev2", domain.DirectionSecondOnA, 1.0, 10),
	})
	require.NoError(t, err)
	_, err = tr.Observe(cycle(2), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionFirstOnA, 3.0, 30),
		candidate("ev2", domain.DirectionSecondOnA, 1.5, 15),
	})
	require.NoError(t, err)

	closed := tr.Interrupt(cycle(3))
	require.Len(t, closed, 2)
	assert.Equal(t, "ev1", closed[0].Key.EventID)
	assert.Equal(t, "ev2", closed[1].Key.EventID)
	assert.Equal(t, cycle(2), closed[0].EndedAt)
	assert.Equal(t, cycle(3), closed[0].ClosedAt)
	assert.Equal(t, 2, closed[0].Observations)
	assert.Zero(t, tr.Len())

	res, err := tr.Observe(cycle(4), []domain.ArbitrageCandidate{
		candidate("ev1", domain.DirectionFirstOnA, 2.5, 25),
	})
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, cycle(4), res.Opened[0].StartedAt)

	_, err = tr.Observe(cycle(2), nil)
	require.ErrorIs(t, err, domain.ErrCycleOutOfOrder)
}

func TestTracker_InterruptWhenEmpty(t *testing.T) {
	tr := newTracker()
	assert.Empty(t, tr.Interrupt(cycle(1)))
}
