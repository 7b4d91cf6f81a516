package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobArchiver struct {
	closedCutoff    time.Time
	candidateCutoff time.Time
	closedErr       error
}

func (f *fakeBlobArchiver) ArchiveClosedOpportunities(_ context.Context, before time.Time) (int64, error) {
	f.closedCutoff = before
	if f.closedErr != nil {
		return 0, f.closedErr
	}
	return 3, nil
}

func (f *fakeBlobArchiver) ArchiveCandidates(_ context.Context, before time.Time) (int64, error) {
	f.candidateCutoff = before
	return 40, nil
}

func newTestArchiver(blob *fakeBlobArchiver) *Archiver {
	a := NewArchiver(blob, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestArchiver_Run(t *testing.T) {
	blob := &fakeBlobArchiver{}
	res, err := newTestArchiver(blob).Run(context.Background())
	require.NoError(t, err)

	want := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, res.Cutoff)
	assert.Equal(t, want, blob.closedCutoff)
	assert.Equal(t, want, blob.candidateCutoff)
	assert.Equal(t, int64(3), res.Closed)
	assert.Equal(t, int64(40), res.Candidates)
}

func TestArchiver_RunContinuesAfterFailure(t *testing.T) {
	boom := errors.New("bucket unreachable")
	blob := &fakeBlobArchiver{closedErr: boom}

	res, err := newTestArchiver(blob).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, blob.candidateCutoff.IsZero())
	assert.Equal(t, int64(40), res.Candidates)
}

func TestArchiver_RunCronStopsOnCancel(t *testing.T) {
	sched, err := ParseSchedule("0 3 * * *")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = newTestArchiver(&fakeBlobArchiver{}).RunCron(ctx, sched)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingAlerter struct{ events, titles []string }

func (r *recordingAlerter) Notify(_ context.Context, event, title, _ string) error {
	r.events = append(r.events, event)
	r.titles = append(r.titles, title)
	return nil
}

func TestArchiver_AlertOnFailure(t *testing.T) {
	alerts := &recordingAlerter{}
	a := newTestArchiver(&fakeBlobArchiver{}).WithAlerts(alerts)

	a.alert(context.Background(), errors.New("bucket unreachable"))

	assert.Equal(t, []string{"error"}, alerts.events)
	require.Len(t, alerts.titles, 1)
	assert.Contains(t, alerts.titles[0], "archive run")
}
