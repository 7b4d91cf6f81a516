// Package fees implements the per-venue fee models applied to arbitrage legs.
package fees

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/steffenmax/arbbot/internal/domain"
)

// Model computes the fee charged by one venue for buying quantity contracts
// at price. Implementations are pure and safe for concurrent use.
type Model interface {
	Venue() domain.Venue
	Fee(quantity, price float64, liq domain.Liquidity) (float64, error)
}

// New builds the model described by a fee schedule.
func New(s domain.FeeSchedule) (Model, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	switch s.Kind {
	case domain.FeeKindQuadratic:
		return Quadratic{schedule: s}, nil
	case domain.FeeKindNotional:
		return Notional{schedule: s}, nil
	default:
		return nil, fmt.Errorf("fees: unsupported kind %q", s.Kind)
	}
}

// Quadratic charges rate × q × p × (1 − p), the price-dependent fee used by
// Kalshi. The fee vanishes at p=0 and p=1 and is rounded up to the schedule's
// rounding unit.
type Quadratic struct {
	schedule domain.FeeSchedule
}

// NewQuadratic returns a quadratic model for schedule s.
func NewQuadratic(s domain.FeeSchedule) Quadratic {
	s.Kind = domain.FeeKindQuadratic
	return Quadratic{schedule: s}
}

func (m Quadratic) Venue() domain.Venue { return m.schedule.Venue }

func (m Quadratic) Fee(quantity, price float64, liq domain.Liquidity) (float64, error) {
	rate, err := prepare(m.schedule, price, liq)
	if err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, nil
	}
	p := decimal.NewFromFloat(price)
	raw := decimal.NewFromFloat(rate).
		Mul(decimal.NewFromFloat(quantity)).
		Mul(p).
		Mul(decimal.NewFromInt(1).Sub(p))
	return roundUp(raw, m.schedule.RoundingUnit).InexactFloat64(), nil
}

// Notional charges a flat proportional rate on q × p plus an optional fixed
// external cost per fill, the shape used by Polymarket.
type Notional struct {
	schedule domain.FeeSchedule
}

// NewNotional returns a notional model for schedule s.
func NewNotional(s domain.FeeSchedule) Notional {
	s.Kind = domain.FeeKindNotional
	return Notional{schedule: s}
}

func (m Notional) Venue() domain.Venue { return m.schedule.Venue }

func (m Notional) Fee(quantity, price float64, liq domain.Liquidity) (float64, error) {
	rate, err := prepare(m.schedule, price, liq)
	if err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, nil
	}
	raw := decimal.NewFromFloat(rate).
		Mul(decimal.NewFromFloat(quantity)).
		Mul(decimal.NewFromFloat(price))
	fee := roundUp(raw, m.schedule.RoundingUnit).Add(decimal.NewFromFloat(m.schedule.FixedCost))
	return fee.InexactFloat64(), nil
}

// prepare validates the inputs common to every model and resolves the rate.
func prepare(s domain.FeeSchedule, price float64, liq domain.Liquidity) (float64, error) {
	if math.IsNaN(price) || price < 0 || price > 1 {
		return 0, fmt.Errorf("fees: %s: price %v: %w", s.Venue, price, domain.ErrPriceOutOfRange)
	}
	rate, err := s.Rate(liq)
	if err != nil {
		return 0, fmt.Errorf("fees: %s: %w", s.Venue, err)
	}
	return rate, nil
}

// roundUp rounds v up to the next multiple of unit. A non-positive unit
// leaves v untouched.
func roundUp(v decimal.Decimal, unit float64) decimal.Decimal {
	if unit <= 0 {
		return v
	}
	u := decimal.NewFromFloat(unit)
	return v.Div(u).Ceil().Mul(u)
}
