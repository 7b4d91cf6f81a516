package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore on SQLite.
type OpportunityStore struct {
	db *sql.DB
}

// NewOpportunityStore returns a closed-opportunity store on the given
// database.
func NewOpportunityStore(d *DB) *OpportunityStore {
	return &OpportunityStore{db: d.db}
}

const closedCols = `id, event_id, event_name, direction, started_ns, ended_ns, closed_ns,
	duration_ns, peak_net_pct, trough_net_pct, peak_net_profit_usd, observations`

// InsertClosed stores closed records; an id already present is ignored.
func (s *OpportunityStore) InsertClosed(ctx context.Context, closed []domain.ClosedOpportunity) error {
	if len(closed) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: insert closed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, c := range closed {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO closed_opportunities (`+closedCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Key.EventID, c.EventName, c.Key.Direction.String(),
			toNanos(c.StartedAt), toNanos(c.EndedAt), toNanos(c.ClosedAt), int64(c.Duration),
			c.PeakNetPct, c.TroughNetPct, c.PeakNetProfitUSD, c.Observations,
		); err != nil {
			return fmt.Errorf("sqlite: insert closed %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: insert closed: commit: %w", err)
	}
	return nil
}

// ListClosed returns closed records, most recently closed first.
func (s *OpportunityStore) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedOpportunity, error) {
	query := `SELECT ` + closedCols + ` FROM closed_opportunities WHERE 1=1`
	var args []any
	if opts.Since != nil {
		query += ` AND closed_ns >= ?`
		args = append(args, toNanos(*opts.Since))
	}
	if opts.Until != nil {
		query += ` AND closed_ns <= ?`
		args = append(args, toNanos(*opts.Until))
	}
	query += ` ORDER BY closed_ns DESC, id`
	// SQLite needs a LIMIT before OFFSET; -1 means unbounded.
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list closed: %w", err)
	}
	defer rows.Close()
	return scanClosed(rows)
}

// ListClosedBefore returns records closed strictly before the cutoff, oldest
// first.
func (s *OpportunityStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ClosedOpportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+closedCols+` FROM closed_opportunities WHERE closed_ns < ? ORDER BY closed_ns, id`, toNanos(before))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list closed before: %w", err)
	}
	defer rows.Close()
	return scanClosed(rows)
}

// DeleteClosedBefore removes records closed strictly before the cutoff.
func (s *OpportunityStore) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM closed_opportunities WHERE closed_ns < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete closed before: %w", err)
	}
	return res.RowsAffected()
}

func scanClosed(rows *sql.Rows) ([]domain.ClosedOpportunity, error) {
	var out []domain.ClosedOpportunity
	for rows.Next() {
		var (
			c                                    domain.ClosedOpportunity
			dir                                  string
			started, ended, closedAt, durationNs int64
		)
		if err := rows.Scan(
			&c.ID, &c.Key.EventID, &c.EventName, &dir, &started, &ended, &closedAt,
			&durationNs, &c.PeakNetPct, &c.TroughNetPct, &c.PeakNetProfitUSD, &c.Observations,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan closed: %w", err)
		}
		d, err := domain.ParseDirection(dir)
		if err != nil {
			return nil, fmt.Errorf("sqlite: closed %s: %w", c.ID, err)
		}
		c.Key.Direction = d
		c.StartedAt = fromNanos(started)
		c.EndedAt = fromNanos(ended)
		c.ClosedAt = fromNanos(closedAt)
		c.Duration = time.Duration(durationNs)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: closed rows: %w", err)
	}
	return out, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
