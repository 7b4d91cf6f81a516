package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CandidateStore persists per-cycle arbitrage candidates.
type CandidateStore interface {
	InsertBatch(ctx context.Context, candidates []ArbitrageCandidate) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageCandidate, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageCandidate, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityStore persists closed opportunity records.
type OpportunityStore interface {
	InsertClosed(ctx context.Context, closed []ClosedOpportunity) error
	ListClosed(ctx context.Context, opts ListOpts) ([]ClosedOpportunity, error)
	ListClosedBefore(ctx context.Context, before time.Time) ([]ClosedOpportunity, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
