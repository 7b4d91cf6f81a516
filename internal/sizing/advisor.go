// Package sizing translates capital tiers into depth-realised profit
// estimates for arbitrage candidates.
package sizing

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/steffenmax/arbbot/internal/depth"
	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/fees"
)

// DefaultTiers are the capital amounts, in USD, reported when none are
// configured.
var DefaultTiers = []float64{50, 100, 250, 500, 1000}

// Advisor estimates what each capital tier would really earn once both legs
// are walked through their ask ladders. It keeps no state between calls.
type Advisor struct {
	tiers  []float64
	models map[domain.Venue]fees.Model
	logger *slog.Logger
}

// NewAdvisor returns an advisor for the given tiers, sorted ascending.
func NewAdvisor(tiers []float64, models []fees.Model, logger *slog.Logger) (*Advisor, error) {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	sorted := make([]float64, 0, len(tiers))
	for _, t := range tiers {
		if !(t > 0) {
			return nil, fmt.Errorf("sizing: tier %v must be > 0", t)
		}
		sorted = append(sorted, t)
	}
	sort.Float64s(sorted)

	byVenue := make(map[domain.Venue]fees.Model, len(models))
	for _, m := range models {
		byVenue[m.Venue()] = m
	}
	return &Advisor{
		tiers:  sorted,
		models: byVenue,
		logger: logger.With(slog.String("component", "sizing")),
	}, nil
}

// Tiers returns the configured capital tiers.
func (a *Advisor) Tiers() []float64 {
	return append([]float64(nil), a.tiers...)
}

// Size estimates every tier for candidate c against the live ask ladders of
// its two legs.
func (a *Advisor) Size(c domain.ArbitrageCandidate, asksA, asksB domain.DepthLadder) domain.SizingReport {
	report := domain.SizingReport{
		CandidateID: c.ID,
		Key:         c.Key(),
		Tiers:       make([]domain.TierEstimate, 0, len(a.tiers)),
	}
	for _, capital := range a.tiers {
		est, err := a.tier(c, capital, asksA, asksB)
		if err != nil {
			est.Feasible = false
			est.Reason = err.Error()
			a.logger.Debug("sizing: tier infeasible",
				slog.String("key", c.Key().String()),
				slog.Float64("capital_usd", capital),
				slog.String("reason", est.Reason),
			)
		}
		report.Tiers = append(report.Tiers, est)
	}
	return report
}

func (a *Advisor) tier(c domain.ArbitrageCandidate, capital float64, asksA, asksB domain.DepthLadder) (domain.TierEstimate, error) {
	est := domain.TierEstimate{CapitalUSD: capital}
	sum := c.PriceSum()
	if !(sum > 0) {
		return est, fmt.Errorf("sizing: candidate %s has no prices: %w", c.ID, domain.ErrInvalidQuantity)
	}
	est.Quantity = capital / sum

	var err error
	est.FillA, err = depth.VWAP(asksA, est.Quantity)
	if err != nil {
		return est, fmt.Errorf("%s: %w", c.LegA.Venue, err)
	}
	est.FillB, err = depth.VWAP(asksB, est.Quantity)
	if err != nil {
		return est, fmt.Errorf("%s: %w", c.LegB.Venue, err)
	}
	if err := errors.Join(legErr(c.LegA, est.FillA), legErr(c.LegB, est.FillB)); err != nil {
		return est, err
	}

	feeA, err := a.fee(c.LegA, est.Quantity, est.FillA.AvgPrice)
	if err != nil {
		return est, err
	}
	feeB, err := a.fee(c.LegB, est.Quantity, est.FillB.AvgPrice)
	if err != nil {
		return est, err
	}

	cost := est.FillA.Cost + est.FillB.Cost
	est.BlendedPrice = cost / est.Quantity
	est.Fees = feeA + feeB + c.FixedCost
	est.NetProfit = est.Quantity - cost - est.Fees
	if cost > 0 {
		est.ROIPct = est.NetProfit / cost * 100
	}
	est.Feasible = true
	return est, nil
}

func (a *Advisor) fee(leg domain.Leg, quantity, price float64) (float64, error) {
	m, ok := a.models[leg.Venue]
	if !ok {
		return 0, fmt.Errorf("sizing: no fee model for %s", leg.Venue)
	}
	return m.Fee(quantity, price, leg.Liquidity)
}

func legErr(leg domain.Leg, f domain.Fill) error {
	if err := f.Err(); err != nil {
		return fmt.Errorf("%s %s: %w: filled %.2f of %.2f", leg.Venue, leg.OutcomeID, err, f.Filled, f.Requested)
	}
	return nil
}
