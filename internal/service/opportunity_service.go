package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/notify"
)

// Notifier sends operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CycleSnapshot is the payload published on the candidates channel once per
// cycle.
type CycleSnapshot struct {
	CycleID    string                      `json:"cycle_id"`
	At         time.Time                   `json:"at"`
	Candidates []domain.ArbitrageCandidate `json:"candidates"`
	Sizing     []domain.SizingReport       `json:"sizing"`
}

// OpportunityService records cycles: it persists candidates and closed
// records, then announces the cycle on the bus, in the audit log and to the
// notifier. Only store failures fail Record.
type OpportunityService struct {
	candidates domain.CandidateStore
	closed     domain.OpportunityStore
	audit      domain.AuditStore
	bus        domain.SignalBus
	notifier   Notifier
	logger     *slog.Logger
}

// NewOpportunityService creates the recorder. Any dependency may be nil;
// with nil stores nothing is persisted and the list methods return
// ErrNotFound.
func NewOpportunityService(
	candidates domain.CandidateStore,
	closed domain.OpportunityStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	logger *slog.Logger,
) *OpportunityService {
	return &OpportunityService{
		candidates: candidates,
		closed:     closed,
		audit:      audit,
		bus:        bus,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "opportunity_service")),
	}
}

// Record persists and announces one cycle.
func (s *OpportunityService) Record(ctx context.Context, report domain.CycleReport) error {
	if s.candidates != nil {
		if err := s.candidates.InsertBatch(ctx, report.Candidates); err != nil {
			return fmt.Errorf("opportunity_service: insert candidates: %w", err)
		}
	}
	if s.closed != nil {
		if err := s.closed.InsertClosed(ctx, report.Closed); err != nil {
			return fmt.Errorf("opportunity_service: insert closed: %w", err)
		}
	}

	s.publish(ctx, report)

	for _, c := range report.Closed {
		if s.audit == nil {
			break
		}
		if err := s.audit.Log(ctx, "opportunity_closed", map[string]any{
			"id":                  c.ID,
			"event_id":            c.Key.EventID,
			"direction":           c.Key.Direction.String(),
			"duration_ms":         c.Duration.Milliseconds(),
			"peak_net_pct":        c.PeakNetPct,
			"trough_net_pct":      c.TroughNetPct,
			"peak_net_profit_usd": c.PeakNetProfitUSD,
			"observations":        c.Observations,
		}); err != nil {
			s.logger.WarnContext(ctx, "opportunity_service: audit log failed",
				slog.String("id", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.notify(ctx, report)
	return nil
}

func (s *OpportunityService) publish(ctx context.Context, report domain.CycleReport) {
	if s.bus == nil {
		return
	}

	s.send(ctx, domain.ChannelCandidates, CycleSnapshot{
		CycleID:    report.ID,
		At:         report.At,
		Candidates: report.Candidates,
		Sizing:     report.Sizing,
	})
	for _, o := range report.Opened {
		s.send(ctx, domain.ChannelOpened, o)
	}
	for _, c := range report.Closed {
		payload := s.send(ctx, domain.ChannelClosed, c)
		if payload == nil {
			continue
		}
		if err := s.bus.StreamAppend(ctx, domain.StreamClosed, payload); err != nil {
			s.logger.WarnContext(ctx, "opportunity_service: stream append failed",
				slog.String("id", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// send publishes v as JSON and returns the payload, or nil if it could not
// be encoded.
func (s *OpportunityService) send(ctx context.Context, channel string, v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(ctx, "opportunity_service: encode event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	return payload
}

func (s *OpportunityService) notify(ctx context.Context, report domain.CycleReport) {
	if s.notifier == nil {
		return
	}

	byKey := make(map[domain.OpportunityKey]domain.ArbitrageCandidate, len(report.Candidates))
	for _, c := range report.Candidates {
		if _, ok := byKey[c.Key()]; !ok {
			byKey[c.Key()] = c
		}
	}

	for _, o := range report.Opened {
		c, ok := byKey[o.Key]
		if !ok {
			continue
		}
		title, msg := notify.OpenedMessage(c)
		if err := s.notifier.Notify(ctx, notify.EventOpportunityOpened, title, msg); err != nil {
			s.logger.WarnContext(ctx, "opportunity_service: notify opened failed",
				slog.String("key", o.Key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, c := range report.Closed {
		title, msg := notify.ClosedMessage(c)
		if err := s.notifier.Notify(ctx, notify.EventOpportunityClosed, title, msg); err != nil {
			s.logger.WarnContext(ctx, "opportunity_service: notify closed failed",
				slog.String("key", c.Key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ListRecentCandidates returns recently stored candidates, newest first.
func (s *OpportunityService) ListRecentCandidates(ctx context.Context, limit int) ([]domain.ArbitrageCandidate, error) {
	if s.candidates == nil {
		return nil, fmt.Errorf("opportunity_service: candidate history: %w", domain.ErrNotFound)
	}
	out, err := s.candidates.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("opportunity_service: list recent candidates: %w", err)
	}
	return out, nil
}

// ListClosed returns stored closed records, most recent first.
func (s *OpportunityService) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedOpportunity, error) {
	if s.closed == nil {
		return nil, fmt.Errorf("opportunity_service: closed history: %w", domain.ErrNotFound)
	}
	out, err := s.closed.ListClosed(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opportunity_service: list closed: %w", err)
	}
	return out, nil
}

var _ Recorder = (*OpportunityService)(nil)
