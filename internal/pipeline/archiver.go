// Package pipeline runs the background jobs that sit beside the scan loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/notify"
	"github.com/steffenmax/arbbot/internal/observability"
)

// Alerter receives operator alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Archiver moves history older than the retention window to cold storage.
type Archiver struct {
	blob      domain.Archiver
	retention time.Duration
	alerts    Alerter
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver keeping retentionDays of history in the
// primary store.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:      blob,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.With(slog.String("component", "archive")),
		now:       time.Now,
	}
}

// WithAlerts sends an error alert for every failed scheduled run.
func (a *Archiver) WithAlerts(n Alerter) *Archiver {
	a.alerts = n
	return a
}

// RunResult reports one archive run.
type RunResult struct {
	Cutoff     time.Time `json:"cutoff"`
	Closed     int64     `json:"closed"`
	Candidates int64     `json:"candidates"`
}

// Run archives closed opportunities and candidates older than the cutoff.
// Both kinds are attempted even if the first fails.
func (a *Archiver) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{Cutoff: a.now().UTC().Add(-a.retention)}
	a.logger.Info("archive: run starting",
		slog.Time("cutoff", res.Cutoff),
		slog.Duration("retention", a.retention),
	)

	var errs []error
	n, err := a.blob.ArchiveClosedOpportunities(ctx, res.Cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("closed opportunities: %w", err))
	}
	res.Closed = n

	n, err = a.blob.ArchiveCandidates(ctx, res.Cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("candidates: %w", err))
	}
	res.Candidates = n

	a.logger.Info("archive: run complete",
		slog.Int64("closed", res.Closed),
		slog.Int64("candidates", res.Candidates),
	)
	observability.ArchivedRows.WithLabelValues("closed").Add(float64(res.Closed))
	observability.ArchivedRows.WithLabelValues("candidates").Add(float64(res.Candidates))

	if err := errors.Join(errs...); err != nil {
		observability.ArchiveRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("archive: run: %w", err)
	}
	observability.ArchiveRuns.WithLabelValues("ok").Inc()
	return res, nil
}

// RunCron runs the archiver on the given schedule until ctx is cancelled.
// A failed run is logged and the loop continues.
func (a *Archiver) RunCron(ctx context.Context, sched Schedule) error {
	a.logger.Info("archive: cron started", slog.String("cron", sched.String()))

	for {
		next, err := sched.Next(a.now().UTC())
		if err != nil {
			return err
		}

		wait := time.Until(next)
		a.logger.Debug("archive: waiting",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archive: cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive: run failed", slog.String("error", err.Error()))
				a.alert(ctx, err)
			}
		}
	}
}

func (a *Archiver) alert(ctx context.Context, err error) {
	if a.alerts == nil {
		return
	}
	title, msg := notify.ErrorMessage("archive run", err)
	if nerr := a.alerts.Notify(ctx, notify.EventError, title, msg); nerr != nil {
		a.logger.Warn("archive: error alert failed", slog.String("error", nerr.Error()))
	}
}
