// Package lifecycle folds successive evaluation cycles into opportunity
// windows and closed history records.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steffenmax/arbbot/internal/domain"
)

// Transition is what one cycle changed in the tracker.
type Transition struct {
	At      time.Time
	Opened  []domain.Opportunity
	Updated []domain.Opportunity
	Closed  []domain.ClosedOpportunity
}

// Tracker owns the live opportunity map. All mutation goes through Observe,
// which is serialised by the tracker's own lock; feed it only whole cycles.
type Tracker struct {
	mu        sync.Mutex
	active    map[domain.OpportunityKey]*domain.Opportunity
	lastCycle time.Time
	logger    *slog.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		active: make(map[domain.OpportunityKey]*domain.Opportunity),
		logger: logger.With(slog.String("component", "lifecycle")),
	}
}

// Observe applies one cycle's candidate set at cycle time at. Keys seen for
// the first time open, keys seen again update their window, and every active
// key missing from the set closes with a record. A cycle older than the
// previous one is rejected with ErrCycleOutOfOrder and changes nothing.
func (t *Tracker) Observe(at time.Time, candidates []domain.ArbitrageCandidate) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastCycle.IsZero() && at.Before(t.lastCycle) {
		return Transition{}, fmt.Errorf("lifecycle: observe %s after %s: %w",
			at.Format(time.RFC3339Nano), t.lastCycle.Format(time.RFC3339Nano), domain.ErrCycleOutOfOrder)
	}
	t.lastCycle = at

	seen := bestPerKey(candidates)
	tr := Transition{At: at}

	for key, c := range seen {
		opp, ok := t.active[key]
		if !ok {
			opp = &domain.Opportunity{
				Key:              key,
				EventName:        c.EventName,
				StartedAt:        at,
				LastSeenAt:       at,
				PeakNetPct:       c.ROIPct,
				TroughNetPct:     c.ROIPct,
				LastNetPct:       c.ROIPct,
				PeakNetProfitUSD: c.NetProfit,
				Observations:     1,
			}
			t.active[key] = opp
			tr.Opened = append(tr.Opened, *opp)
			t.logger.Info("lifecycle: opportunity opened",
				slog.String("key", key.String()),
				slog.Float64("net_pct", c.ROIPct),
				slog.Float64("net_usd", c.NetProfit),
			)
			continue
		}
		opp.LastSeenAt = at
		opp.LastNetPct = c.ROIPct
		opp.PeakNetPct = max(opp.PeakNetPct, c.ROIPct)
		opp.TroughNetPct = min(opp.TroughNetPct, c.ROIPct)
		opp.PeakNetProfitUSD = max(opp.PeakNetProfitUSD, c.NetProfit)
		opp.Observations++
		tr.Updated = append(tr.Updated, *opp)
	}

	for key, opp := range t.active {
		if _, ok := seen[key]; ok {
			continue
		}
		tr.Closed = append(tr.Closed, t.close(key, opp, at))
	}

	sortOpportunities(tr.Opened)
	sortOpportunities(tr.Updated)
	sort.Slice(tr.Closed, func(i, j int) bool { return keyLess(tr.Closed[i].Key, tr.Closed[j].Key) })
	return tr, nil
}

// Interrupt closes every active opportunity at cycle time at without
// observing a candidate set. Call it when a cycle ran somewhere this tracker
// cannot see, so a window never spans unobserved cycles. Each record ends at
// its last sighting.
func (t *Tracker) Interrupt(at time.Time) []domain.ClosedOpportunity {
	t.mu.Lock()
	defer t.mu.Unlock()

	if at.After(t.lastCycle) {
		t.lastCycle = at
	}
	closed := make([]domain.ClosedOpportunity, 0, len(t.active))
	for key, opp := range t.active {
		closed = append(closed, t.close(key, opp, at))
	}
	sort.Slice(closed, func(i, j int) bool { return keyLess(closed[i].Key, closed[j].Key) })
	return closed
}

// close removes key from the active map and returns its record. The caller
// holds t.mu.
func (t *Tracker) close(key domain.OpportunityKey, opp *domain.Opportunity, at time.Time) domain.ClosedOpportunity {
	closed := domain.ClosedOpportunity{
		ID:               uuid.NewString(),
		Key:              key,
		EventName:        opp.EventName,
		StartedAt:        opp.StartedAt,
		EndedAt:          opp.LastSeenAt,
		ClosedAt:         at,
		Duration:         opp.Duration(),
		PeakNetPct:       opp.PeakNetPct,
		TroughNetPct:     opp.TroughNetPct,
		PeakNetProfitUSD: opp.PeakNetProfitUSD,
		Observations:     opp.Observations,
	}
	delete(t.active, key)
	t.logger.Info("lifecycle: opportunity closed",
		slog.String("key", key.String()),
		slog.Duration("duration", closed.Duration),
		slog.Float64("peak_net_pct", closed.PeakNetPct),
		slog.Int("observations", closed.Observations),
	)
	return closed
}

// Active returns copies of the live opportunities ordered by start time,
// each with its running duration at now.
func (t *Tracker) Active(now time.Time) []domain.ActiveOpportunity {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.ActiveOpportunity, 0, len(t.active))
	for _, opp := range t.active {
		running := now.Sub(opp.StartedAt)
		if running < 0 {
			running = 0
		}
		out = append(out, domain.ActiveOpportunity{Opportunity: *opp, Running: running})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return keyLess(out[i].Key, out[j].Key)
	})
	return out
}

// Len returns the number of live opportunities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// bestPerKey keeps the candidate with the highest net % per key. The
// evaluator emits one candidate per key, so this only matters when callers
// merge sets.
func bestPerKey(candidates []domain.ArbitrageCandidate) map[domain.OpportunityKey]domain.ArbitrageCandidate {
	out := make(map[domain.OpportunityKey]domain.ArbitrageCandidate, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		if prev, ok := out[key]; ok && prev.ROIPct >= c.ROIPct {
			continue
		}
		out[key] = c
	}
	return out
}

func sortOpportunities(opps []domain.Opportunity) {
	sort.Slice(opps, func(i, j int) bool { return keyLess(opps[i].Key, opps[j].Key) })
}

func keyLess(a, b domain.OpportunityKey) bool {
	if a.EventID != b.EventID {
		return a.EventID < b.EventID
	}
	return a.Direction < b.Direction
}
