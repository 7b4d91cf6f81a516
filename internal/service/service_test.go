package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/arbitrage"
	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/fees"
	"github.com/steffenmax/arbbot/internal/lifecycle"
	"github.com/steffenmax/arbbot/internal/notify"
	"github.com/steffenmax/arbbot/internal/service"
	"github.com/steffenmax/arbbot/internal/sizing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type staticRegistry []domain.CanonicalEvent

func (r staticRegistry) Events(context.Context) ([]domain.CanonicalEvent, error) { return r, nil }

type fakeSource struct {
	venue domain.Venue
	mu    sync.Mutex
	asks  map[string]float64
	calls int
}

func newFakeSource(v domain.Venue, asks map[string]float64) *fakeSource {
	return &fakeSource{venue: v, asks: asks}
}

func (s *fakeSource) Venue() domain.Venue { return s.venue }

func (s *fakeSource) FetchBook(_ context.Context, ref string) (domain.VenueBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	ask, ok := s.asks[ref]
	if !ok {
		return domain.VenueBook{}, domain.ErrMissingQuote
	}
	now := time.Now()
	return domain.VenueBook{
		Quote: domain.Quote{Venue: s.venue, Ref: ref, BestAsk: ask, ObservedAt: now},
		Asks: domain.DepthLadder{
			Venue:      s.venue,
			Side:       domain.SideAsk,
			Levels:     []domain.PriceLevel{{Price: ask, Size: 1000}},
			ObservedAt: now,
		},
	}, nil
}

func (s *fakeSource) drop(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.asks, ref)
}

type fakeRecorder struct {
	reports []domain.CycleReport
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, report domain.CycleReport) error {
	r.reports = append(r.reports, report)
	return r.err
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

// switchLock is held by another instance while held is set.
type switchLock struct{ held bool }

func (l *switchLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

// --- fixtures ---

func testEvent() domain.CanonicalEvent {
	return domain.CanonicalEvent{
		ID:   "nba-bos-nyk",
		Name: "Celtics at Knicks",
		Outcomes: [2]domain.EventOutcome{
			{ID: "bos", Refs: map[domain.Venue]string{domain.VenueKalshi: "KXNBA-BOS", domain.VenuePolymarket: "tok-bos"}},
			{ID: "nyk", Refs: map[domain.Venue]string{domain.VenueKalshi: "KXNBA-NYK", domain.VenuePolymarket: "tok-nyk"}},
		},
	}
}

type harness struct {
	scan     *service.ScanService
	kalshi   *fakeSource
	poly     *fakeSource
	tracker  *lifecycle.Tracker
	recorder *fakeRecorder
}

func newHarness(t *testing.T, lock domain.LockManager) *harness {
	t.Helper()

	kalshiFees := fees.NewQuadratic(domain.FeeSchedule{
		Venue: domain.VenueKalshi, TakerRate: 0.07, MakerRate: 0.0175, RoundingUnit: 0.01,
	})
	polyFees := fees.NewNotional(domain.FeeSchedule{Venue: domain.VenuePolymarket})

	eval, err := arbitrage.NewEvaluator(arbitrage.Config{
		Venues: domain.VenuePair{A: domain.VenueKalshi, B: domain.VenuePolymarket},
		Liquidity: map[domain.Venue]domain.Liquidity{
			domain.VenueKalshi:     domain.LiquidityTaker,
			domain.VenuePolymarket: domain.LiquidityTaker,
		},
		QuantityStep:  10,
		QuantityMax:   500,
		MaxSweepSteps: 100,
		MaxQuoteAge:   time.Minute,
	}, kalshiFees, polyFees, discardLogger())
	require.NoError(t, err)

	advisor, err := sizing.NewAdvisor([]float64{55}, []fees.Model{kalshiFees, polyFees}, discardLogger())
	require.NoError(t, err)

	h := &harness{
		kalshi:   newFakeSource(domain.VenueKalshi, map[string]float64{"KXNBA-BOS": 0.24, "KXNBA-NYK": 0.78}),
		poly:     newFakeSource(domain.VenuePolymarket, map[string]float64{"tok-bos": 0.70, "tok-nyk": 0.31}),
		tracker:  lifecycle.NewTracker(discardLogger()),
		recorder: &fakeRecorder{},
	}

	h.scan, err = service.NewScanService(
		staticRegistry{testEvent()},
		[]domain.BookSource{h.kalshi, h.poly},
		eval, h.tracker, advisor, h.recorder, lock,
		service.ScanConfig{Interval: time.Second, Workers: 2, LockKey: "scan"},
		discardLogger(),
	)
	require.NoError(t, err)
	return h
}

// --- scan service ---

func TestScanService_RunOnce(t *testing.T) {
	h := newHarness(t, nil)

	report, err := h.scan.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Events)
	require.Len(t, report.Candidates, 1)
	c := report.Candidates[0]
	assert.Equal(t, domain.DirectionFirstOnA, c.Direction)
	assert.Equal(t, "bos", c.LegA.OutcomeID)
	assert.Equal(t, "nyk", c.LegB.OutcomeID)
	assert.InDelta(t, 500, c.Quantity, 1e-9)
	assert.InDelta(t, 218.61, c.NetProfit, 1e-6)

	assert.Equal(t, 1, report.Skipped["no_profitable_quantity"])
	require.Len(t, report.Opened, 1)
	assert.Empty(t, report.Closed)

	require.Len(t, report.Sizing, 1)
	require.Len(t, report.Sizing[0].Tiers, 1)
	tier := report.Sizing[0].Tiers[0]
	assert.True(t, tier.Feasible)
	assert.InDelta(t, 100, tier.Quantity, 1e-9)

	assert.Equal(t, 4, h.kalshi.calls+h.poly.calls)
	require.Len(t, h.recorder.reports, 1)
	assert.Equal(t, report.ID, h.recorder.reports[0].ID)

	last, ok := h.scan.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)
	assert.Equal(t, int64(1), h.scan.Cycles())
	assert.Len(t, h.scan.Active(time.Now()), 1)
}

func TestScanService_ClosesWhenBookDisappears(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.scan.RunOnce(context.Background())
	require.NoError(t, err)

	h.poly.drop("tok-nyk")
	report, err := h.scan.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Candidates)
	assert.Equal(t, 1, report.Skipped["missing_quote"])
	require.Len(t, report.Closed, 1)
	assert.Equal(t, "nba-bos-nyk", report.Closed[0].Key.EventID)
	assert.Equal(t, 1, report.Closed[0].Observations)
	assert.Zero(t, h.tracker.Len())
}

func TestScanService_LockHeldSkipsCycle(t *testing.T) {
	h := newHarness(t, heldLock{})

	_, err := h.scan.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)

	assert.Zero(t, h.kalshi.calls)
	assert.Empty(t, h.recorder.reports)
	_, ok := h.scan.LastReport()
	assert.False(t, ok)
}

func TestScanService_SkippedCycleSplitsWindow(t *testing.T) {
	lock := &switchLock{}
	h := newHarness(t, lock)

	first, err := h.scan.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Opened, 1)

	// The other instance runs this cycle while the book is gone.
	lock.held = true
	h.poly.drop("tok-nyk")
	_, err = h.scan.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Zero(t, h.tracker.Len())

	lock.held = false
	h.poly.asks["tok-nyk"] = 0.31
	third, err := h.scan.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, third.Closed, 1)
	closed := third.Closed[0]
	assert.Equal(t, first.Opened[0].Key, closed.Key)
	assert.Equal(t, first.At, closed.EndedAt)
	assert.Equal(t, 1, closed.Observations)
	require.Len(t, third.Opened, 1)
	assert.Equal(t, third.At, third.Opened[0].StartedAt)

	active := h.scan.Active(time.Now())
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Observations)

	require.Len(t, h.recorder.reports, 2)
	assert.Len(t, h.recorder.reports[1].Closed, 1)
}

func TestScanService_CancelledCycleIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.scan.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, h.tracker.Len())
	assert.Empty(t, h.recorder.reports)
	assert.Zero(t, h.scan.Cycles())
}

func TestScanService_RecordFailureKeepsReport(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.err = errors.New("db down")

	report, err := h.scan.RunOnce(context.Background())
	require.ErrorIs(t, err, h.recorder.err)

	last, ok := h.scan.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)
}

func TestScanService_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.scan.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, h.scan.Cycles(), int64(1))
}

func TestNewScanService_RequiresSourcePerVenue(t *testing.T) {
	eval, err := arbitrage.NewEvaluator(arbitrage.Config{
		Venues: domain.VenuePair{A: domain.VenueKalshi, B: domain.VenuePolymarket},
		Liquidity: map[domain.Venue]domain.Liquidity{
			domain.VenueKalshi:     domain.LiquidityTaker,
			domain.VenuePolymarket: domain.LiquidityTaker,
		},
		QuantityStep: 1, QuantityMax: 1, MaxSweepSteps: 1, MaxQuoteAge: time.Minute,
	}, fees.NewQuadratic(domain.FeeSchedule{Venue: domain.VenueKalshi, TakerRate: 0.07, RoundingUnit: 0.01}),
		fees.NewNotional(domain.FeeSchedule{Venue: domain.VenuePolymarket}), discardLogger())
	require.NoError(t, err)

	_, err = service.NewScanService(staticRegistry{}, []domain.BookSource{newFakeSource(domain.VenueKalshi, nil)},
		eval, lifecycle.NewTracker(discardLogger()), nil, nil, nil, service.ScanConfig{Interval: time.Second}, discardLogger())
	assert.Error(t, err)
}

// --- opportunity service ---

type memCandidates struct {
	inserted []domain.ArbitrageCandidate
	err      error
}

func (m *memCandidates) InsertBatch(_ context.Context, cs []domain.ArbitrageCandidate) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, cs...)
	return nil
}

func (m *memCandidates) ListRecent(_ context.Context, limit int) ([]domain.ArbitrageCandidate, error) {
	if limit > len(m.inserted) {
		limit = len(m.inserted)
	}
	return m.inserted[:limit], nil
}

func (m *memCandidates) ListBefore(context.Context, time.Time) ([]domain.ArbitrageCandidate, error) {
	return nil, nil
}

func (m *memCandidates) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memClosed struct {
	inserted []domain.ClosedOpportunity
}

func (m *memClosed) InsertClosed(_ context.Context, cs []domain.ClosedOpportunity) error {
	m.inserted = append(m.inserted, cs...)
	return nil
}

func (m *memClosed) ListClosed(context.Context, domain.ListOpts) ([]domain.ClosedOpportunity, error) {
	return m.inserted, nil
}

func (m *memClosed) ListClosedBefore(context.Context, time.Time) ([]domain.ClosedOpportunity, error) {
	return nil, nil
}

func (m *memClosed) DeleteClosedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memAudit struct{ events []string }

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
	err       error
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memNotifier struct{ events []string }

func (n *memNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

func sampleReport() domain.CycleReport {
	at := time.Date(2026, 3, 14, 19, 5, 0, 0, time.UTC)
	key := domain.OpportunityKey{EventID: "nba-bos-nyk", Direction: domain.DirectionFirstOnA}
	return domain.CycleReport{
		ID: "cycle-1",
		At: at,
		Candidates: []domain.ArbitrageCandidate{{
			ID: "cand-1", EventID: key.EventID, Direction: key.Direction, NetProfit: 10, EvaluatedAt: at,
		}},
		Opened: []domain.Opportunity{{Key: key, StartedAt: at, LastSeenAt: at, Observations: 1}},
		Closed: []domain.ClosedOpportunity{{
			ID:       "closed-1",
			Key:      domain.OpportunityKey{EventID: "nba-lal-gsw", Direction: domain.DirectionSecondOnA},
			ClosedAt: at,
			Duration: 2 * time.Minute,
		}},
	}
}

func TestOpportunityService_Record(t *testing.T) {
	cands, closed, audit, bus, notifier := &memCandidates{}, &memClosed{}, &memAudit{}, newMemBus(), &memNotifier{}
	svc := service.NewOpportunityService(cands, closed, audit, bus, notifier, discardLogger())

	require.NoError(t, svc.Record(context.Background(), sampleReport()))

	assert.Len(t, cands.inserted, 1)
	assert.Len(t, closed.inserted, 1)

	require.Len(t, bus.published[domain.ChannelCandidates], 1)
	var snap service.CycleSnapshot
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelCandidates][0], &snap))
	assert.Equal(t, "cycle-1", snap.CycleID)
	require.Len(t, snap.Candidates, 1)

	assert.Len(t, bus.published[domain.ChannelOpened], 1)
	assert.Len(t, bus.published[domain.ChannelClosed], 1)
	assert.Len(t, bus.streamed[domain.StreamClosed], 1)

	assert.Equal(t, []string{"opportunity_closed"}, audit.events)
	assert.Equal(t, []string{notify.EventOpportunityOpened, notify.EventOpportunityClosed}, notifier.events)

	recent, err := svc.ListRecentCandidates(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestOpportunityService_BusFailureDoesNotFailRecord(t *testing.T) {
	bus := newMemBus()
	bus.err = errors.New("redis down")
	svc := service.NewOpportunityService(&memCandidates{}, &memClosed{}, &memAudit{}, bus, nil, discardLogger())

	assert.NoError(t, svc.Record(context.Background(), sampleReport()))
}

func TestOpportunityService_StoreFailureFailsRecord(t *testing.T) {
	cands := &memCandidates{err: errors.New("disk full")}
	bus := newMemBus()
	svc := service.NewOpportunityService(cands, &memClosed{}, &memAudit{}, bus, nil, discardLogger())

	err := svc.Record(context.Background(), sampleReport())
	require.ErrorIs(t, err, cands.err)
	assert.Empty(t, bus.published)
}

// --- book sources ---

type memCache struct {
	books map[string]domain.VenueBook
	err   error
}

func (c *memCache) SetBook(_ context.Context, b domain.VenueBook) error {
	if c.err != nil {
		return c.err
	}
	c.books[string(b.Quote.Venue)+"/"+b.Quote.Ref] = b
	return nil
}

func (c *memCache) GetBook(_ context.Context, v domain.Venue, ref string) (domain.VenueBook, error) {
	b, ok := c.books[string(v)+"/"+ref]
	if !ok {
		return domain.VenueBook{}, domain.ErrNotFound
	}
	return b, nil
}

func TestCachingSource_WritesThrough(t *testing.T) {
	cache := &memCache{books: map[string]domain.VenueBook{}}
	src := service.NewCachingSource(newFakeSource(domain.VenueKalshi, map[string]float64{"K": 0.4}), cache, discardLogger())

	book, err := src.FetchBook(context.Background(), "K")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, book.Quote.BestAsk, 1e-9)

	cached, err := service.NewCacheSource(domain.VenueKalshi, cache).FetchBook(context.Background(), "K")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cached.Quote.BestAsk, 1e-9)

	_, err = service.NewCacheSource(domain.VenueKalshi, cache).FetchBook(context.Background(), "other")
	assert.ErrorIs(t, err, domain.ErrMissingQuote)
}

func TestCachingSource_CacheFailureIgnored(t *testing.T) {
	cache := &memCache{books: map[string]domain.VenueBook{}, err: errors.New("redis down")}
	src := service.NewCachingSource(newFakeSource(domain.VenueKalshi, map[string]float64{"K": 0.4}), cache, discardLogger())

	_, err := src.FetchBook(context.Background(), "K")
	assert.NoError(t, err)

	_, err = src.FetchBook(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrMissingQuote)
}

// --- follower ---

type chanBus struct {
	memBus
	ch chan []byte
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) { return b.ch, nil }

func TestCycleFollower_KeepsLatestSnapshot(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 2)}
	f := service.NewCycleFollower(bus, discardLogger())

	payload, err := json.Marshal(service.CycleSnapshot{
		CycleID:    "cycle-9",
		Candidates: []domain.ArbitrageCandidate{{ID: "c"}},
	})
	require.NoError(t, err)
	bus.ch <- []byte("not json")
	bus.ch <- payload
	close(bus.ch)

	err = f.Run(context.Background())
	require.Error(t, err)

	last, ok := f.LastReport()
	require.True(t, ok)
	assert.Equal(t, "cycle-9", last.ID)
	assert.Len(t, last.Candidates, 1)
	assert.Equal(t, int64(1), f.Cycles())
}

type failingRegistry struct{ err error }

func (r failingRegistry) Events(context.Context) ([]domain.CanonicalEvent, error) { return nil, r.err }

func TestScanService_AlertsOncePerFailingStreak(t *testing.T) {
	h := newHarness(t, nil)
	eval, err := arbitrage.NewEvaluator(arbitrage.Config{
		Venues: domain.VenuePair{A: domain.VenueKalshi, B: domain.VenuePolymarket},
		Liquidity: map[domain.Venue]domain.Liquidity{
			domain.VenueKalshi:     domain.LiquidityTaker,
			domain.VenuePolymarket: domain.LiquidityTaker,
		},
		QuantityStep: 1, QuantityMax: 1, MaxSweepSteps: 1, MaxQuoteAge: time.Minute,
	}, fees.NewQuadratic(domain.FeeSchedule{Venue: domain.VenueKalshi, TakerRate: 0.07, RoundingUnit: 0.01}),
		fees.NewNotional(domain.FeeSchedule{Venue: domain.VenuePolymarket}), discardLogger())
	require.NoError(t, err)

	scan, err := service.NewScanService(failingRegistry{err: errors.New("registry unreadable")},
		[]domain.BookSource{h.kalshi, h.poly}, eval, lifecycle.NewTracker(discardLogger()),
		nil, nil, nil, service.ScanConfig{Interval: 5 * time.Millisecond}, discardLogger())
	require.NoError(t, err)
	alerts := &memNotifier{}
	scan.WithAlerts(alerts)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, scan.Run(ctx), context.DeadlineExceeded)

	assert.Equal(t, []string{notify.EventError}, alerts.events)
}

func TestOpportunityService_WithoutStores(t *testing.T) {
	bus := newMemBus()
	svc := service.NewOpportunityService(nil, nil, nil, bus, nil, discardLogger())

	require.NoError(t, svc.Record(context.Background(), sampleReport()))
	assert.Len(t, bus.published[domain.ChannelCandidates], 1)

	_, err := svc.ListRecentCandidates(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ListClosed(context.Background(), domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
