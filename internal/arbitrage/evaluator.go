// Package arbitrage prices cross-venue pairings of complementary outcomes and
// picks the quantity that maximises net profit after fees.
package arbitrage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/fees"
)

// Config holds the immutable evaluation parameters.
type Config struct {
	Venues domain.VenuePair
	// Liquidity is the liquidity flag charged on each venue's leg. Both
	// venues must be set; there is no default.
	Liquidity map[domain.Venue]domain.Liquidity

	QuantityStep  float64
	QuantityMax   float64
	MaxSweepSteps int

	MinROIPct    float64
	MinProfitUSD float64
	// FixedCostUSD is an external cost charged once per pairing on top of
	// the venue fee models.
	FixedCostUSD float64
	// MaxQuoteAge excludes quotes older than this at cycle time. It must be
	// positive.
	MaxQuoteAge time.Duration
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if !c.Venues.A.Valid() || !c.Venues.B.Valid() || c.Venues.A == c.Venues.B {
		errs = append(errs, fmt.Errorf("venues must be two distinct known venues, got %q and %q", c.Venues.A, c.Venues.B))
	}
	for _, v := range []domain.Venue{c.Venues.A, c.Venues.B} {
		if l := c.Liquidity[v]; l != domain.LiquidityTaker && l != domain.LiquidityMaker {
			errs = append(errs, fmt.Errorf("liquidity for %s: %w", v, domain.ErrLiquidityUnspecified))
		}
	}
	if !(c.QuantityStep > 0) {
		errs = append(errs, errors.New("quantity step must be > 0"))
	}
	if c.QuantityMax < c.QuantityStep {
		errs = append(errs, errors.New("quantity max must be >= quantity step"))
	}
	if c.MaxSweepSteps <= 0 {
		errs = append(errs, errors.New("max sweep steps must be > 0"))
	}
	if c.FixedCostUSD < 0 {
		errs = append(errs, errors.New("fixed cost must be >= 0"))
	}
	if c.MinProfitUSD < 0 {
		errs = append(errs, errors.New("min profit must be >= 0"))
	}
	if c.MinROIPct < 0 {
		errs = append(errs, errors.New("min roi must be >= 0"))
	}
	if c.MaxQuoteAge <= 0 {
		errs = append(errs, errors.New("max quote age must be > 0"))
	}
	return errors.Join(errs...)
}

// Skip records why a pairing produced no candidate.
type Skip struct {
	Key domain.OpportunityKey
	Err error
}

// Evaluation is the result of evaluating one event.
type Evaluation struct {
	Candidates []domain.ArbitrageCandidate
	Skips      []Skip
}

// Evaluator produces arbitrage candidates for canonical events. It holds no
// mutable state and may be shared across goroutines.
type Evaluator struct {
	cfg    Config
	models map[domain.Venue]fees.Model
	logger *slog.Logger
}

// NewEvaluator validates cfg and binds one fee model per venue.
func NewEvaluator(cfg Config, feeA, feeB fees.Model, logger *slog.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arbitrage: config: %w", err)
	}
	if feeA == nil || feeB == nil {
		return nil, errors.New("arbitrage: fee model required for both venues")
	}
	if feeA.Venue() != cfg.Venues.A || feeB.Venue() != cfg.Venues.B {
		return nil, fmt.Errorf("arbitrage: fee models for %s/%s do not match venues %s/%s",
			feeA.Venue(), feeB.Venue(), cfg.Venues.A, cfg.Venues.B)
	}
	return &Evaluator{
		cfg:    cfg,
		models: map[domain.Venue]fees.Model{cfg.Venues.A: feeA, cfg.Venues.B: feeB},
		logger: logger.With(slog.String("component", "arb_evaluator")),
	}, nil
}

// Venues returns the venue pair the evaluator compares.
func (e *Evaluator) Venues() domain.VenuePair { return e.cfg.Venues }

// Evaluate prices both pairings of event against quotes observed up to at.
// Missing, stale and unprofitable pairings are recorded as skips; candidates
// come back sorted by net profit, best first.
func (e *Evaluator) Evaluate(event domain.CanonicalEvent, quotes map[domain.QuoteKey]domain.Quote, at time.Time) Evaluation {
	var out Evaluation
	for _, dir := range domain.Directions() {
		key := domain.OpportunityKey{EventID: event.ID, Direction: dir}
		c, err := e.evaluatePairing(event, dir, quotes, at)
		if err != nil {
			e.logSkip(key, err)
			out.Skips = append(out.Skips, Skip{Key: key, Err: err})
			continue
		}
		out.Candidates = append(out.Candidates, c)
	}
	SortByNetProfit(out.Candidates)
	return out
}

func (e *Evaluator) evaluatePairing(event domain.CanonicalEvent, dir domain.Direction, quotes map[domain.QuoteKey]domain.Quote, at time.Time) (domain.ArbitrageCandidate, error) {
	p, err := PairingFor(event, dir, e.cfg.Venues)
	if err != nil {
		return domain.ArbitrageCandidate{}, err
	}
	qa, err := e.freshAsk(p.A, quotes, at)
	if err != nil {
		return domain.ArbitrageCandidate{}, err
	}
	qb, err := e.freshAsk(p.B, quotes, at)
	if err != nil {
		return domain.ArbitrageCandidate{}, err
	}
	c, err := e.Price(p, qa.BestAsk, qb.BestAsk)
	if err != nil {
		return domain.ArbitrageCandidate{}, err
	}
	c.EventName = event.Name
	c.LegA.ObservedAt = qa.ObservedAt
	c.LegB.ObservedAt = qb.ObservedAt
	c.EvaluatedAt = at
	return c, nil
}

// freshAsk returns the quote for a leg when it has a usable ask no older
// than the freshness window.
func (e *Evaluator) freshAsk(leg LegRef, quotes map[domain.QuoteKey]domain.Quote, at time.Time) (domain.Quote, error) {
	q, ok := quotes[domain.QuoteKey{Venue: leg.Venue, OutcomeID: leg.OutcomeID}]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s %s", domain.ErrMissingQuote, leg.Venue, leg.OutcomeID)
	}
	if !(q.BestAsk > 0) || q.BestAsk > 1 {
		return domain.Quote{}, fmt.Errorf("%w: %s %s: no ask", domain.ErrMissingQuote, leg.Venue, leg.OutcomeID)
	}
	if q.Age(at) > e.cfg.MaxQuoteAge {
		return domain.Quote{}, fmt.Errorf("%w: %s %s: age %s", domain.ErrStaleQuote, leg.Venue, leg.OutcomeID, q.Age(at).Round(time.Millisecond))
	}
	return q, nil
}

// Price runs the quantity sweep for a pairing at the given ask prices. It
// returns ErrNoProfitableQuantity when the asks sum to 1 or more, or when no
// swept quantity clears both profit floors.
func (e *Evaluator) Price(p Pairing, askA, askB float64) (domain.ArbitrageCandidate, error) {
	if p.A.OutcomeID == p.B.OutcomeID {
		return domain.ArbitrageCandidate{}, fmt.Errorf("%w: event %s", domain.ErrInvalidPairing, p.EventID)
	}
	if askA+askB >= 1 {
		return domain.ArbitrageCandidate{}, fmt.Errorf("%w: asks sum to %.4f", domain.ErrNoProfitableQuantity, askA+askB)
	}

	best, found, err := e.sweep(p, askA, askB)
	if err != nil {
		return domain.ArbitrageCandidate{}, err
	}
	if !found {
		return domain.ArbitrageCandidate{}, fmt.Errorf("%w: event %s %s", domain.ErrNoProfitableQuantity, p.EventID, p.Direction)
	}

	return domain.ArbitrageCandidate{
		ID:        uuid.NewString(),
		EventID:   p.EventID,
		Direction: p.Direction,
		LegA: domain.Leg{
			Venue: p.A.Venue, OutcomeID: p.A.OutcomeID, Ref: p.A.Ref,
			Price: askA, Fee: best.feeA, Liquidity: e.cfg.Liquidity[p.A.Venue],
		},
		LegB: domain.Leg{
			Venue: p.B.Venue, OutcomeID: p.B.OutcomeID, Ref: p.B.Ref,
			Price: askB, Fee: best.feeB, Liquidity: e.cfg.Liquidity[p.B.Venue],
		},
		Quantity:    best.quantity,
		GrossCost:   best.grossCost,
		Payout:      best.payout,
		GrossProfit: best.grossProfit,
		FixedCost:   e.cfg.FixedCostUSD,
		Fees:        best.fees,
		NetProfit:   best.net,
		ROIPct:      best.roiPct,
	}, nil
}

type point struct {
	quantity    float64
	grossCost   float64
	payout      float64
	grossProfit float64
	feeA        float64
	feeB        float64
	fees        float64
	net         float64
	roiPct      float64
}

// sweep walks quantities step, 2·step, ... up to the capped ceiling and keeps
// the one with the highest net profit among those clearing both floors. On a
// tie the smaller quantity wins.
func (e *Evaluator) sweep(p Pairing, askA, askB float64) (point, bool, error) {
	steps := e.steps()
	var (
		best  point
		found bool
	)
	for i := 1; i <= steps; i++ {
		pt, err := e.at(p, float64(i)*e.cfg.QuantityStep, askA, askB)
		if err != nil {
			return point{}, false, err
		}
		if pt.net < e.cfg.MinProfitUSD || pt.roiPct < e.cfg.MinROIPct {
			continue
		}
		if !found || pt.net > best.net {
			best, found = pt, true
		}
	}
	return best, found, nil
}

// steps is the number of sweep points, bounded by both the quantity ceiling
// and MaxSweepSteps.
func (e *Evaluator) steps() int {
	n := int(math.Floor(e.cfg.QuantityMax/e.cfg.QuantityStep + 1e-9))
	if n > e.cfg.MaxSweepSteps {
		n = e.cfg.MaxSweepSteps
	}
	return n
}

// at computes the economics of buying q contracts on both legs.
func (e *Evaluator) at(p Pairing, q, askA, askB float64) (point, error) {
	feeA, err := e.models[p.A.Venue].Fee(q, askA, e.cfg.Liquidity[p.A.Venue])
	if err != nil {
		return point{}, fmt.Errorf("arbitrage: fee %s: %w", p.A.Venue, err)
	}
	feeB, err := e.models[p.B.Venue].Fee(q, askB, e.cfg.Liquidity[p.B.Venue])
	if err != nil {
		return point{}, fmt.Errorf("arbitrage: fee %s: %w", p.B.Venue, err)
	}
	pt := point{
		quantity:  q,
		grossCost: (askA + askB) * q,
		payout:    q,
		feeA:      feeA,
		feeB:      feeB,
		fees:      feeA + feeB + e.cfg.FixedCostUSD,
	}
	pt.grossProfit = pt.payout - pt.grossCost
	pt.net = pt.grossProfit - pt.fees
	if pt.grossCost > 0 {
		pt.roiPct = pt.net / pt.grossCost * 100
	}
	return pt, nil
}

func (e *Evaluator) logSkip(key domain.OpportunityKey, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPairing):
		e.logger.Error("arb evaluator: invalid pairing",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, domain.ErrMissingQuote),
		errors.Is(err, domain.ErrStaleQuote),
		errors.Is(err, domain.ErrNoProfitableQuantity):
		e.logger.Debug("arb evaluator: pairing skipped",
			slog.String("key", key.String()),
			slog.String("reason", err.Error()),
		)
	default:
		e.logger.Warn("arb evaluator: pairing failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	}
}

// SortByNetProfit orders candidates by net profit, best first, breaking ties
// by event id and direction so output is stable.
func SortByNetProfit(cs []domain.ArbitrageCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].NetProfit != cs[j].NetProfit {
			return cs[i].NetProfit > cs[j].NetProfit
		}
		if cs[i].EventID != cs[j].EventID {
			return cs[i].EventID < cs[j].EventID
		}
		return cs[i].Direction < cs[j].Direction
	})
}

// SkipReason maps a skip error to a short metric label.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleQuote):
		return "stale_quote"
	case errors.Is(err, domain.ErrMissingQuote):
		return "missing_quote"
	case errors.Is(err, domain.ErrNoProfitableQuantity):
		return "no_profitable_quantity"
	case errors.Is(err, domain.ErrInvalidPairing):
		return "invalid_pairing"
	default:
		return "error"
	}
}
