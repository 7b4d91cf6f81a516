// Package service runs the evaluation cycle and records what it finds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steffenmax/arbbot/internal/arbitrage"
	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/lifecycle"
	"github.com/steffenmax/arbbot/internal/notify"
	"github.com/steffenmax/arbbot/internal/observability"
	"github.com/steffenmax/arbbot/internal/sizing"
)

// Recorder persists and announces a finished cycle.
type Recorder interface {
	Record(ctx context.Context, report domain.CycleReport) error
}

// ScanConfig tunes the cycle loop.
type ScanConfig struct {
	Interval time.Duration
	// Workers bounds concurrent venue fetches. Zero means 8.
	Workers int
	// LockKey enables the cycle lock when set, so only one instance records
	// each cycle.
	LockKey string
	LockTTL time.Duration
}

// ScanService runs evaluation cycles: fetch books, evaluate every event,
// feed the tracker once, size the candidates and record the result.
type ScanService struct {
	registry  domain.EventRegistry
	sources   map[domain.Venue]domain.BookSource
	evaluator *arbitrage.Evaluator
	tracker   *lifecycle.Tracker
	advisor   *sizing.Advisor
	recorder  Recorder
	lock      domain.LockManager
	cfg       ScanConfig
	alerts    Notifier
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	last   *domain.CycleReport
	cycles int64
	// interrupted holds windows closed by skipped cycles until the next
	// completed cycle records them.
	interrupted []domain.ClosedOpportunity
}

// NewScanService wires a scan loop. recorder, lock and advisor may be nil.
func NewScanService(
	registry domain.EventRegistry,
	sources []domain.BookSource,
	evaluator *arbitrage.Evaluator,
	tracker *lifecycle.Tracker,
	advisor *sizing.Advisor,
	recorder Recorder,
	lock domain.LockManager,
	cfg ScanConfig,
	logger *slog.Logger,
) (*ScanService, error) {
	bySource := make(map[domain.Venue]domain.BookSource, len(sources))
	for _, s := range sources {
		bySource[s.Venue()] = s
	}
	venues := evaluator.Venues()
	for _, v := range []domain.Venue{venues.A, venues.B} {
		if bySource[v] == nil {
			return nil, fmt.Errorf("scan: no book source for venue %s", v)
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &ScanService{
		registry:  registry,
		sources:   bySource,
		evaluator: evaluator,
		tracker:   tracker,
		advisor:   advisor,
		recorder:  recorder,
		lock:      lock,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "scan")),
	}, nil
}

// WithAlerts sends an error alert when cycles start failing. One alert is
// sent per failing streak.
func (s *ScanService) WithAlerts(n Notifier) *ScanService {
	s.alerts = n
	return s
}

// Run executes a cycle immediately and then on every tick until ctx is
// cancelled. Cycle errors are logged and the loop continues.
func (s *ScanService) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return errors.New("scan: interval must be > 0")
	}
	s.logger.Info("scan: loop starting", slog.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	failing := false
	for {
		_, err := s.RunOnce(ctx)
		switch {
		case err == nil:
			if failing {
				s.logger.Info("scan: cycles recovered")
			}
			failing = false
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.Debug("scan: cycle skipped, lock held elsewhere")
		default:
			s.logger.Error("scan: cycle failed", slog.String("error", err.Error()))
			if !failing {
				s.alert(ctx, err)
			}
			failing = true
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scan: loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *ScanService) alert(ctx context.Context, err error) {
	if s.alerts == nil {
		return
	}
	title, msg := notify.ErrorMessage("scan cycle", err)
	if nerr := s.alerts.Notify(ctx, notify.EventError, title, msg); nerr != nil {
		s.logger.Warn("scan: error alert failed", slog.String("error", nerr.Error()))
	}
}

// legFetch is one venue book needed by one event.
type legFetch struct {
	event   int
	outcome string
	venue   domain.Venue
	ref     string
}

// RunOnce executes a single cycle. A cycle interrupted by ctx is discarded
// whole: the tracker never sees it and nothing is recorded.
func (s *ScanService) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	start := s.now()
	at := start.UTC()

	if s.lock != nil && s.cfg.LockKey != "" {
		unlock, err := s.lock.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				observability.Cycles.WithLabelValues(observability.CycleLocked).Inc()
				s.interrupt(at)
			}
			return domain.CycleReport{}, fmt.Errorf("scan: acquire cycle lock: %w", err)
		}
		defer unlock()
	}

	events, err := s.registry.Events(ctx)
	if err != nil {
		observability.Cycles.WithLabelValues(observability.CycleError).Inc()
		return domain.CycleReport{}, fmt.Errorf("scan: list events: %w", err)
	}

	books := s.fetchBooks(ctx, events)
	if err := ctx.Err(); err != nil {
		observability.Cycles.WithLabelValues(observability.CycleCancelled).Inc()
		s.logger.Info("scan: cycle discarded", slog.String("reason", err.Error()))
		return domain.CycleReport{}, err
	}

	report := domain.CycleReport{
		ID:      uuid.NewString(),
		At:      at,
		Events:  len(events),
		Skipped: make(map[string]int),
	}

	for i, ev := range events {
		quotes := make(map[domain.QuoteKey]domain.Quote, len(books[i]))
		for key, b := range books[i] {
			quotes[key] = b.Quote
		}
		eval := s.evaluator.Evaluate(ev, quotes, at)
		report.Candidates = append(report.Candidates, eval.Candidates...)
		for _, skip := range eval.Skips {
			reason := arbitrage.SkipReason(skip.Err)
			report.Skipped[reason]++
			observability.QuotesSkipped.WithLabelValues(reason).Inc()
			if errors.Is(skip.Err, domain.ErrInvalidPairing) {
				observability.InvalidPairings.Inc()
			}
		}
	}
	arbitrage.SortByNetProfit(report.Candidates)

	tr, err := s.tracker.Observe(at, report.Candidates)
	if err != nil {
		observability.Cycles.WithLabelValues(observability.CycleError).Inc()
		return domain.CycleReport{}, fmt.Errorf("scan: %w", err)
	}
	report.Opened = tr.Opened
	s.mu.Lock()
	report.Closed = append(s.interrupted, tr.Closed...)
	s.interrupted = nil
	s.mu.Unlock()

	if s.advisor != nil {
		report.Sizing = s.size(events, books, report.Candidates)
	}

	report.Elapsed = s.now().Sub(start)
	s.observe(report)

	var recordErr error
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, report); err != nil {
			recordErr = fmt.Errorf("scan: record cycle: %w", err)
		}
	}

	s.mu.Lock()
	s.last = &report
	s.cycles++
	s.mu.Unlock()

	result := observability.CycleOK
	if recordErr != nil {
		result = observability.CycleError
	}
	observability.Cycles.WithLabelValues(result).Inc()

	s.logger.Info("scan: cycle complete",
		slog.String("cycle_id", report.ID),
		slog.Int("events", report.Events),
		slog.Int("candidates", len(report.Candidates)),
		slog.Int("opened", len(report.Opened)),
		slog.Int("closed", len(report.Closed)),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, recordErr
}

// interrupt closes the tracker's windows when another instance runs the
// cycle at, since this process cannot tell what that cycle saw.
func (s *ScanService) interrupt(at time.Time) {
	closed := s.tracker.Interrupt(at)
	if len(closed) == 0 {
		return
	}
	s.mu.Lock()
	s.interrupted = append(s.interrupted, closed...)
	s.mu.Unlock()
	s.logger.Info("scan: windows interrupted by skipped cycle", slog.Int("closed", len(closed)))
}

// fetchBooks fetches every listed leg of every event with bounded
// concurrency. Each fetch writes only its own slot. Legs that fail are left
// out and surface later as missing quotes.
func (s *ScanService) fetchBooks(ctx context.Context, events []domain.CanonicalEvent) []map[domain.QuoteKey]domain.VenueBook {
	venues := s.evaluator.Venues()

	var jobs []legFetch
	for i, ev := range events {
		for _, o := range ev.Outcomes {
			for _, v := range []domain.Venue{venues.A, venues.B} {
				if ref, ok := o.Ref(v); ok {
					jobs = append(jobs, legFetch{event: i, outcome: o.ID, venue: v, ref: ref})
				}
			}
		}
	}

	slots := make([]*domain.VenueBook, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			book, err := s.sources[job.venue].FetchBook(gctx, job.ref)
			if err != nil {
				s.logFetchErr(job, err)
				return nil
			}
			book.Quote.Venue = job.venue
			book.Quote.OutcomeID = job.outcome
			book.Quote.Ref = job.ref
			book.Asks.Venue = job.venue
			book.Asks.OutcomeID = job.outcome
			slots[i] = &book
			return nil
		})
	}
	_ = g.Wait()

	out := make([]map[domain.QuoteKey]domain.VenueBook, len(events))
	for i := range out {
		out[i] = make(map[domain.QuoteKey]domain.VenueBook, 4)
	}
	for i, job := range jobs {
		if slots[i] == nil {
			continue
		}
		out[job.event][domain.QuoteKey{Venue: job.venue, OutcomeID: job.outcome}] = *slots[i]
	}
	return out
}

func (s *ScanService) logFetchErr(job legFetch, err error) {
	attrs := []any{
		slog.String("venue", string(job.venue)),
		slog.String("ref", job.ref),
		slog.String("error", err.Error()),
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, domain.ErrMissingQuote):
		s.logger.Debug("scan: no book", attrs...)
	default:
		s.logger.Warn("scan: fetch book failed", attrs...)
	}
}

// size runs the capital tiers for every candidate against the ask ladders
// captured this cycle.
func (s *ScanService) size(events []domain.CanonicalEvent, books []map[domain.QuoteKey]domain.VenueBook, candidates []domain.ArbitrageCandidate) []domain.SizingReport {
	byEvent := make(map[string]int, len(events))
	for i, ev := range events {
		byEvent[ev.ID] = i
	}

	out := make([]domain.SizingReport, 0, len(candidates))
	for _, c := range candidates {
		eb := books[byEvent[c.EventID]]
		asksA := eb[domain.QuoteKey{Venue: c.LegA.Venue, OutcomeID: c.LegA.OutcomeID}].Asks
		asksB := eb[domain.QuoteKey{Venue: c.LegB.Venue, OutcomeID: c.LegB.OutcomeID}].Asks
		out = append(out, s.advisor.Size(c, asksA, asksB))
	}
	return out
}

func (s *ScanService) observe(r domain.CycleReport) {
	observability.CycleDuration.Observe(r.Elapsed.Seconds())
	observability.Candidates.Set(float64(len(r.Candidates)))
	observability.OpportunitiesActive.Set(float64(s.tracker.Len()))
	observability.OpportunitiesClosed.Add(float64(len(r.Closed)))
	for _, c := range r.Closed {
		observability.OpportunityDuration.Observe(c.Duration.Seconds())
	}
}

// LastReport returns the most recent completed cycle.
func (s *ScanService) LastReport() (domain.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.CycleReport{}, false
	}
	return *s.last, true
}

// Cycles returns how many cycles have completed.
func (s *ScanService) Cycles() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// Active returns the live opportunities with their running time at now.
func (s *ScanService) Active(now time.Time) []domain.ActiveOpportunity {
	return s.tracker.Active(now)
}
