package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CandidateStore implements domain.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *pgxpool.Pool
}

// NewCandidateStore creates a new CandidateStore backed by the given pool.
func NewCandidateStore(pool *pgxpool.Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

const candidateSelectCols = `id, event_id, event_name, direction,
	leg_a_venue, leg_a_outcome, leg_a_ref, leg_a_price, leg_a_fee, leg_a_liquidity, leg_a_observed_at,
	leg_b_venue, leg_b_outcome, leg_b_ref, leg_b_price, leg_b_fee, leg_b_liquidity, leg_b_observed_at,
	quantity, gross_cost, payout, gross_profit, fixed_cost, fees, net_profit, roi_pct, evaluated_at`

// InsertBatch inserts one cycle's candidates using a pgx Batch. Candidates
// already stored under the same id are skipped.
func (s *CandidateStore) InsertBatch(ctx context.Context, candidates []domain.ArbitrageCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	const query = `
		INSERT INTO candidates (` + candidateSelectCols + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(query,
			c.ID, c.EventID, c.EventName, c.Direction.String(),
			string(c.LegA.Venue), c.LegA.OutcomeID, c.LegA.Ref, c.LegA.Price, c.LegA.Fee, c.LegA.Liquidity.String(), c.LegA.ObservedAt,
			string(c.LegB.Venue), c.LegB.OutcomeID, c.LegB.Ref, c.LegB.Price, c.LegB.Fee, c.LegB.Liquidity.String(), c.LegB.ObservedAt,
			c.Quantity, c.GrossCost, c.Payout, c.GrossProfit, c.FixedCost, c.Fees, c.NetProfit, c.ROIPct, c.EvaluatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range candidates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert candidate batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns the most recently evaluated candidates, newest first.
func (s *CandidateStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageCandidate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateSelectCols+` FROM candidates ORDER BY evaluated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent candidates: %w", err)
	}
	defer rows.Close()

	out, err := scanCandidateRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent candidates: %w", err)
	}
	return out, nil
}

// ListBefore returns every candidate evaluated strictly before the cutoff,
// oldest first.
func (s *CandidateStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateSelectCols+` FROM candidates WHERE evaluated_at < $1 ORDER BY evaluated_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candidates before: %w", err)
	}
	defer rows.Close()

	out, err := scanCandidateRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan candidates before: %w", err)
	}
	return out, nil
}

// DeleteBefore removes candidates evaluated strictly before the cutoff.
func (s *CandidateStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM candidates WHERE evaluated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete candidates before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCandidateRows(rows pgx.Rows) ([]domain.ArbitrageCandidate, error) {
	var out []domain.ArbitrageCandidate
	for rows.Next() {
		var (
			c              domain.ArbitrageCandidate
			dir            string
			venueA, venueB string
			liqA, liqB     string
		)
		if err := rows.Scan(
			&c.ID, &c.EventID, &c.EventName, &dir,
			&venueA, &c.LegA.OutcomeID, &c.LegA.Ref, &c.LegA.Price, &c.LegA.Fee, &liqA, &c.LegA.ObservedAt,
			&venueB, &c.LegB.OutcomeID, &c.LegB.Ref, &c.LegB.Price, &c.LegB.Fee, &liqB, &c.LegB.ObservedAt,
			&c.Quantity, &c.GrossCost, &c.Payout, &c.GrossProfit, &c.FixedCost, &c.Fees, &c.NetProfit, &c.ROIPct, &c.EvaluatedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeCandidate(&c, dir, venueA, venueB, liqA, liqB); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// decodeCandidate restores the typed fields stored as text.
func decodeCandidate(c *domain.ArbitrageCandidate, dir, venueA, venueB, liqA, liqB string) error {
	var err error
	if c.Direction, err = domain.ParseDirection(dir); err != nil {
		return fmt.Errorf("candidate %s: %w", c.ID, err)
	}
	c.LegA.Venue = domain.Venue(venueA)
	c.LegB.Venue = domain.Venue(venueB)
	// Unknown flags decode as unspecified rather than failing the read.
	c.LegA.Liquidity, _ = domain.ParseLiquidity(liqA)
	c.LegB.Liquidity, _ = domain.ParseLiquidity(liqB)
	return nil
}

// Compile-time interface check.
var _ domain.CandidateStore = (*CandidateStore)(nil)
