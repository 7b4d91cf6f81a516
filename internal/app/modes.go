package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steffenmax/arbbot/internal/arbitrage"
	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/fees"
	"github.com/steffenmax/arbbot/internal/lifecycle"
	"github.com/steffenmax/arbbot/internal/pipeline"
	"github.com/steffenmax/arbbot/internal/report"
	"github.com/steffenmax/arbbot/internal/server"
	"github.com/steffenmax/arbbot/internal/server/handler"
	"github.com/steffenmax/arbbot/internal/server/ws"
	"github.com/steffenmax/arbbot/internal/service"
	"github.com/steffenmax/arbbot/internal/sizing"
)

// EvaluateMode runs the scan loop, the optional archive cron and the HTTP
// server until ctx is cancelled.
func (a *App) EvaluateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting evaluate mode",
		slog.Int("events", deps.Registry.Len()),
	)

	recorder := service.NewOpportunityService(
		deps.CandidateStore, deps.OpportunityStore, deps.AuditStore,
		deps.SignalBus, deps.Notifier, a.logger,
	)
	scan, err := a.buildScan(deps, recorder)
	if err != nil {
		return err
	}
	scan.WithAlerts(deps.Notifier)

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Archive.Enabled {
		if err := a.startArchiveCron(ctx, g, deps); err != nil {
			return err
		}
	}
	g.Go(func() error {
		return scan.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		candidates, closed := a.history(deps, recorder)
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health:        handler.NewHealthHandler(deps.Checks, a.logger),
			Status:        handler.NewStatusHandler(a.cfg.Mode, scan),
			Candidates:    handler.NewCandidateHandler(scan, candidates, a.logger),
			Opportunities: handler.NewOpportunityHandler(scan, closed, a.logger),
		})
	}

	return g.Wait()
}

// MonitorMode follows the cycles another instance publishes on the bus and
// serves them over HTTP. It runs no scans of its own.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if deps.SignalBus == nil {
		return fmt.Errorf("app: monitor mode requires redis")
	}

	follower := service.NewCycleFollower(deps.SignalBus, a.logger)
	history := service.NewOpportunityService(
		deps.CandidateStore, deps.OpportunityStore, nil, nil, nil, a.logger,
	)
	candidates, closed := a.history(deps, history)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return follower.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, server.Handlers{
		Health:        handler.NewHealthHandler(deps.Checks, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, follower),
		Candidates:    handler.NewCandidateHandler(follower, candidates, a.logger),
		Opportunities: handler.NewOpportunityHandler(nil, closed, a.logger),
	})

	return g.Wait()
}

// ReportMode runs a single cycle and prints the candidates, tier sizing and
// recent closed opportunities as tables on stdout.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting report mode",
		slog.Int("events", deps.Registry.Len()),
	)

	recorder := service.NewOpportunityService(
		deps.CandidateStore, deps.OpportunityStore, deps.AuditStore,
		nil, nil, a.logger,
	)
	scan, err := a.buildScan(deps, recorder)
	if err != nil {
		return err
	}

	rep, err := scan.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("app: report cycle: %w", err)
	}

	out := report.NewConsole(os.Stdout)
	out.Cycle(rep)
	out.Candidates(rep.Candidates)
	out.Tiers(rep.Candidates, rep.Sizing)
	out.Active(scan.Active(rep.At))

	if deps.OpportunityStore != nil {
		closed, err := recorder.ListClosed(ctx, domain.ListOpts{Limit: 20})
		if err != nil {
			return fmt.Errorf("app: report closed: %w", err)
		}
		out.Closed(closed)
	}
	return nil
}

// ArchiveMode runs one archive pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires s3 and a history store")
	}
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	res, err := archiver.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete",
		slog.Time("cutoff", res.Cutoff),
		slog.Int64("closed", res.Closed),
		slog.Int64("candidates", res.Candidates),
	)
	return nil
}

// buildScan assembles the fee models, evaluator, tracker and advisor into a
// scan service recording through recorder.
func (a *App) buildScan(deps *Dependencies, recorder service.Recorder) (*service.ScanService, error) {
	venues := a.cfg.Venues()
	feeA, err := fees.New(a.cfg.FeeSchedule(venues.A))
	if err != nil {
		return nil, fmt.Errorf("app: fee model %s: %w", venues.A, err)
	}
	feeB, err := fees.New(a.cfg.FeeSchedule(venues.B))
	if err != nil {
		return nil, fmt.Errorf("app: fee model %s: %w", venues.B, err)
	}

	arb := a.cfg.Arbitrage
	evaluator, err := arbitrage.NewEvaluator(arbitrage.Config{
		Venues:        venues,
		Liquidity:     a.cfg.Liquidity(),
		QuantityStep:  arb.QuantityStep,
		QuantityMax:   arb.QuantityMax,
		MaxSweepSteps: arb.MaxSweepSteps,
		MinROIPct:     arb.MinROIPct,
		MinProfitUSD:  arb.MinProfitUSD,
		FixedCostUSD:  arb.FixedCostUSD,
		MaxQuoteAge:   arb.MaxQuoteAge.Duration,
	}, feeA, feeB, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: evaluator: %w", err)
	}

	advisor, err := sizing.NewAdvisor(a.cfg.Sizing.Tiers, []fees.Model{feeA, feeB}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: advisor: %w", err)
	}

	scan, err := service.NewScanService(
		deps.Registry,
		deps.Sources,
		evaluator,
		lifecycle.NewTracker(a.logger),
		advisor,
		recorder,
		deps.LockManager,
		service.ScanConfig{
			Interval: arb.Interval.Duration,
			Workers:  arb.Workers,
			LockKey:  arb.LockKey,
		},
		a.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("app: scan: %w", err)
	}
	return scan, nil
}

// history returns the list sources for the history endpoints, leaving each
// nil when its store is not configured so the endpoint answers 501.
func (a *App) history(deps *Dependencies, svc *service.OpportunityService) (handler.CandidateHistory, handler.ClosedHistory) {
	var (
		candidates handler.CandidateHistory
		closed     handler.ClosedHistory
	)
	if deps.CandidateStore != nil {
		candidates = svc
	}
	if deps.OpportunityStore != nil {
		closed = svc
	}
	return candidates, closed
}

// startArchiveCron adds the scheduled archiver to g.
func (a *App) startArchiveCron(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive enabled but no history store, cron not started")
		return nil
	}
	sched, err := pipeline.ParseSchedule(a.cfg.Archive.Cron)
	if err != nil {
		return fmt.Errorf("app: archive cron: %w", err)
	}
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger).
		WithAlerts(deps.Notifier)
	g.Go(func() error {
		return archiver.RunCron(ctx, sched)
	})
	return nil
}

// startHTTPServer adds the HTTP server goroutine to g, plus the WebSocket hub
// when a bus is available. The server shuts down when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, handlers server.Handlers) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Burst:       a.cfg.Server.Burst,
		Metrics:     a.cfg.Metrics.Enabled,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
