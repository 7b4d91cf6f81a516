package domain

import (
	"fmt"
	"strings"
)

// Liquidity says whether a leg takes or provides liquidity. The zero value is
// deliberately unspecified: fee models refuse to guess.
type Liquidity uint8

const (
	LiquidityUnspecified Liquidity = iota
	LiquidityTaker
	LiquidityMaker
)

func (l Liquidity) String() string {
	switch l {
	case LiquidityTaker:
		return "taker"
	case LiquidityMaker:
		return "maker"
	default:
		return "unspecified"
	}
}

// ParseLiquidity parses "taker" or "maker".
func ParseLiquidity(s string) (Liquidity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taker":
		return LiquidityTaker, nil
	case "maker":
		return LiquidityMaker, nil
	default:
		return LiquidityUnspecified, fmt.Errorf("%w: %q", ErrLiquidityUnspecified, s)
	}
}

func (l Liquidity) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Liquidity) UnmarshalText(text []byte) error {
	v, err := ParseLiquidity(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// FeeKind selects the fee formula applied by a venue.
type FeeKind string

const (
	// FeeKindQuadratic charges rate × q × p × (1 − p).
	FeeKindQuadratic FeeKind = "quadratic"
	// FeeKindNotional charges rate × q × p plus a fixed cost.
	FeeKindNotional FeeKind = "notional"
)

// FeeSchedule is the immutable fee configuration of one venue.
type FeeSchedule struct {
	Venue     Venue
	Kind      FeeKind
	TakerRate float64
	MakerRate float64
	// FixedCost is charged once per non-empty fill, independent of price.
	// Only notional schedules carry one.
	FixedCost float64
	// RoundingUnit is the smallest currency unit fees are rounded up to.
	// Zero disables rounding.
	RoundingUnit float64
}

// Rate returns the rate for the given liquidity flag.
func (s FeeSchedule) Rate(l Liquidity) (float64, error) {
	switch l {
	case LiquidityTaker:
		return s.TakerRate, nil
	case LiquidityMaker:
		return s.MakerRate, nil
	default:
		return 0, ErrLiquidityUnspecified
	}
}

// Validate rejects negative parameters and unknown kinds.
func (s FeeSchedule) Validate() error {
	if !s.Venue.Valid() {
		return fmt.Errorf("fee schedule: unknown venue %q", s.Venue)
	}
	if s.Kind != FeeKindQuadratic && s.Kind != FeeKindNotional {
		return fmt.Errorf("fee schedule %s: unknown kind %q", s.Venue, s.Kind)
	}
	if s.TakerRate < 0 || s.MakerRate < 0 || s.FixedCost < 0 || s.RoundingUnit < 0 {
		return fmt.Errorf("fee schedule %s: rates, fixed cost and rounding unit must be >= 0", s.Venue)
	}
	if s.Kind == FeeKindQuadratic && s.FixedCost > 0 {
		return fmt.Errorf("fee schedule %s: quadratic fees take no fixed cost", s.Venue)
	}
	return nil
}
