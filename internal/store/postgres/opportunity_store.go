package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steffenmax/arbbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const closedSelectCols = `id, event_id, event_name, direction,
	started_at, ended_at, closed_at, duration_ms,
	peak_net_pct, trough_net_pct, peak_net_profit_usd, observations`

// InsertClosed stores closed opportunity records. Records are immutable, so
// a repeated id is ignored.
func (s *OpportunityStore) InsertClosed(ctx context.Context, closed []domain.ClosedOpportunity) error {
	if len(closed) == 0 {
		return nil
	}

	const query = `
		INSERT INTO closed_opportunities (` + closedSelectCols + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, c := range closed {
		batch.Queue(query,
			c.ID, c.Key.EventID, c.EventName, c.Key.Direction.String(),
			c.StartedAt, c.EndedAt, c.ClosedAt, c.Duration.Milliseconds(),
			c.PeakNetPct, c.TroughNetPct, c.PeakNetProfitUSD, c.Observations,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range closed {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert closed opportunity batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListClosed returns closed records, most recently closed first.
func (s *OpportunityStore) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedOpportunity, error) {
	query, args := listQuery(`SELECT `+closedSelectCols+` FROM closed_opportunities WHERE 1=1`, nil, "closed_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed opportunities: %w", err)
	}
	defer rows.Close()

	out, err := scanClosedRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed opportunities: %w", err)
	}
	return out, nil
}

// ListClosedBefore returns every record closed strictly before the cutoff,
// oldest first.
func (s *OpportunityStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ClosedOpportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+closedSelectCols+` FROM closed_opportunities WHERE closed_at < $1 ORDER BY closed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed opportunities before: %w", err)
	}
	defer rows.Close()

	out, err := scanClosedRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed opportunities before: %w", err)
	}
	return out, nil
}

// DeleteClosedBefore removes records closed strictly before the cutoff.
func (s *OpportunityStore) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM closed_opportunities WHERE closed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed opportunities before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanClosedRows(rows pgx.Rows) ([]domain.ClosedOpportunity, error) {
	var out []domain.ClosedOpportunity
	for rows.Next() {
		var (
			c          domain.ClosedOpportunity
			dir        string
			durationMs int64
		)
		if err := rows.Scan(
			&c.ID, &c.Key.EventID, &c.EventName, &dir,
			&c.StartedAt, &c.EndedAt, &c.ClosedAt, &durationMs,
			&c.PeakNetPct, &c.TroughNetPct, &c.PeakNetProfitUSD, &c.Observations,
		); err != nil {
			return nil, err
		}
		d, err := domain.ParseDirection(dir)
		if err != nil {
			return nil, fmt.Errorf("closed opportunity %s: %w", c.ID, err)
		}
		c.Key.Direction = d
		c.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
