package domain

import (
	"fmt"
	"math"
	"time"
)

// Side is the side of a depth ladder.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is a single price+size entry in a depth ladder.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Quote is the top of book for one outcome on one venue at one instant. A
// quote is never mutated; the next observation supersedes it.
type Quote struct {
	Venue      Venue     `json:"venue"`
	OutcomeID  string    `json:"outcome_id"`
	Ref        string    `json:"ref"`
	BestBid    float64   `json:"best_bid"`
	BestAsk    float64   `json:"best_ask"`
	Volume     float64   `json:"volume"`
	ObservedAt time.Time `json:"observed_at"`
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// DepthLadder is the ordered resting liquidity on one side of one instrument.
// Asks are ascending and bids descending, so Levels[0] is always the best
// price.
type DepthLadder struct {
	Venue      Venue        `json:"venue"`
	OutcomeID  string       `json:"outcome_id"`
	Side       Side         `json:"side"`
	Levels     []PriceLevel `json:"levels"`
	ObservedAt time.Time    `json:"observed_at"`
}

// Validate enforces strictly monotonic prices in improving order, prices in
// [0,1] and positive sizes.
func (l DepthLadder) Validate() error {
	if l.Side != SideAsk && l.Side != SideBid {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidLadder, l.Side)
	}
	for i, lvl := range l.Levels {
		if math.IsNaN(lvl.Price) || lvl.Price < 0 || lvl.Price > 1 {
			return fmt.Errorf("%w: level %d: %w", ErrInvalidLadder, i, ErrPriceOutOfRange)
		}
		if !(lvl.Size > 0) {
			return fmt.Errorf("%w: level %d: size %v must be > 0", ErrInvalidLadder, i, lvl.Size)
		}
		if i == 0 {
			continue
		}
		prev := l.Levels[i-1].Price
		if l.Side == SideAsk && lvl.Price <= prev {
			return fmt.Errorf("%w: ask level %d price %v not above %v", ErrInvalidLadder, i, lvl.Price, prev)
		}
		if l.Side == SideBid && lvl.Price >= prev {
			return fmt.Errorf("%w: bid level %d price %v not below %v", ErrInvalidLadder, i, lvl.Price, prev)
		}
	}
	return nil
}

// Best returns the first level of the ladder.
func (l DepthLadder) Best() (PriceLevel, bool) {
	if len(l.Levels) == 0 {
		return PriceLevel{}, false
	}
	return l.Levels[0], true
}

// TotalSize returns the resting size summed across all levels.
func (l DepthLadder) TotalSize() float64 {
	var total float64
	for _, lvl := range l.Levels {
		total += lvl.Size
	}
	return total
}

// VenueBook bundles the quote and the ask ladder captured for one venue
// instrument in a single observation.
type VenueBook struct {
	Quote Quote       `json:"quote"`
	Asks  DepthLadder `json:"asks"`
}

// QuoteKey addresses one outcome on one venue.
type QuoteKey struct {
	Venue     Venue
	OutcomeID string
}
