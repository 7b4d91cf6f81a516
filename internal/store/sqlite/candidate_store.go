package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CandidateStore implements domain.CandidateStore on SQLite.
type CandidateStore struct {
	db *sql.DB
}

// NewCandidateStore returns a candidate store on the given database.
func NewCandidateStore(d *DB) *CandidateStore {
	return &CandidateStore{db: d.db}
}

const candidateCols = `id, event_id, event_name, direction,
	leg_a_venue, leg_a_outcome, leg_a_ref, leg_a_price, leg_a_fee, leg_a_liquidity, leg_a_observed_ns,
	leg_b_venue, leg_b_outcome, leg_b_ref, leg_b_price, leg_b_fee, leg_b_liquidity, leg_b_observed_ns,
	quantity, gross_cost, payout, gross_profit, fixed_cost, fees, net_profit, roi_pct, evaluated_ns`

// InsertBatch stores one cycle's candidates in a single transaction.
func (s *CandidateStore) InsertBatch(ctx context.Context, candidates []domain.ArbitrageCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: insert candidates: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO candidates (`+candidateCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: insert candidates: prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range candidates {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.EventID, c.EventName, c.Direction.String(),
			string(c.LegA.Venue), c.LegA.OutcomeID, c.LegA.Ref, c.LegA.Price, c.LegA.Fee, c.LegA.Liquidity.String(), toNanos(c.LegA.ObservedAt),
			string(c.LegB.Venue), c.LegB.OutcomeID, c.LegB.Ref, c.LegB.Price, c.LegB.Fee, c.LegB.Liquidity.String(), toNanos(c.LegB.ObservedAt),
			c.Quantity, c.GrossCost, c.Payout, c.GrossProfit, c.FixedCost, c.Fees, c.NetProfit, c.ROIPct, toNanos(c.EvaluatedAt),
		); err != nil {
			return fmt.Errorf("sqlite: insert candidate %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: insert candidates: commit: %w", err)
	}
	return nil
}

// ListRecent returns the most recently evaluated candidates, newest first.
func (s *CandidateStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageCandidate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateCols+` FROM candidates ORDER BY evaluated_ns DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list recent candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// ListBefore returns candidates evaluated strictly before the cutoff, oldest
// first.
func (s *CandidateStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateCols+` FROM candidates WHERE evaluated_ns < ? ORDER BY evaluated_ns, id`, toNanos(before))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list candidates before: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// DeleteBefore removes candidates evaluated strictly before the cutoff.
func (s *CandidateStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE evaluated_ns < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete candidates before: %w", err)
	}
	return res.RowsAffected()
}

func scanCandidates(rows *sql.Rows) ([]domain.ArbitrageCandidate, error) {
	var out []domain.ArbitrageCandidate
	for rows.Next() {
		var (
			c                     domain.ArbitrageCandidate
			dir, venueA, venueB   string
			liqA, liqB            string
			obsA, obsB, evaluated int64
		)
		if err := rows.Scan(
			&c.ID, &c.EventID, &c.EventName, &dir,
			&venueA, &c.LegA.OutcomeID, &c.LegA.Ref, &c.LegA.Price, &c.LegA.Fee, &liqA, &obsA,
			&venueB, &c.LegB.OutcomeID, &c.LegB.Ref, &c.LegB.Price, &c.LegB.Fee, &liqB, &obsB,
			&c.Quantity, &c.GrossCost, &c.Payout, &c.GrossProfit, &c.FixedCost, &c.Fees, &c.NetProfit, &c.ROIPct, &evaluated,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan candidate: %w", err)
		}
		d, err := domain.ParseDirection(dir)
		if err != nil {
			return nil, fmt.Errorf("sqlite: candidate %s: %w", c.ID, err)
		}
		c.Direction = d
		c.LegA.Venue = domain.Venue(venueA)
		c.LegB.Venue = domain.Venue(venueB)
		c.LegA.Liquidity, _ = domain.ParseLiquidity(liqA)
		c.LegB.Liquidity, _ = domain.ParseLiquidity(liqB)
		c.LegA.ObservedAt = fromNanos(obsA)
		c.LegB.ObservedAt = fromNanos(obsB)
		c.EvaluatedAt = fromNanos(evaluated)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: candidate rows: %w", err)
	}
	return out, nil
}

var _ domain.CandidateStore = (*CandidateStore)(nil)
