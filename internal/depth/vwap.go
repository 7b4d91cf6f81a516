// Package depth walks order-book ladders to estimate realised execution
// prices.
package depth

import (
	"fmt"
	"math"

	"github.com/steffenmax/arbbot/internal/domain"
)

// VWAP fills target contracts against the ladder in price-priority order and
// returns the volume-weighted result. When the ladder holds less than target
// the fill is returned with Partial set and a nil error; callers decide what
// a partial fill means for them. Any shortfall counts, however small.
func VWAP(ladder domain.DepthLadder, target float64) (domain.Fill, error) {
	best, err := prepare(ladder, target)
	if err != nil {
		return domain.Fill{}, err
	}

	fill := domain.Fill{Side: ladder.Side, Requested: target, BestPrice: best.Price}
	remaining := target
	for _, lvl := range ladder.Levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Size)
		fill.Filled += take
		fill.Cost += take * lvl.Price
		fill.LevelsUsed++
		remaining -= take
	}
	fill.Partial = remaining > 0
	finish(&fill)
	return fill, nil
}

// VWAPNotional spends up to notional currency units against the ladder. The
// last level touched may be bought fractionally. Requested holds the notional
// budget and Partial is set when the ladder ran out before it was spent.
func VWAPNotional(ladder domain.DepthLadder, notional float64) (domain.Fill, error) {
	best, err := prepare(ladder, notional)
	if err != nil {
		return domain.Fill{}, err
	}

	fill := domain.Fill{Side: ladder.Side, Requested: notional, BestPrice: best.Price}
	remaining := notional
	for _, lvl := range ladder.Levels {
		if remaining <= 0 {
			break
		}
		fill.LevelsUsed++
		levelCost := lvl.Size * lvl.Price
		if levelCost <= remaining || lvl.Price == 0 {
			fill.Filled += lvl.Size
			fill.Cost += levelCost
			remaining -= levelCost
			continue
		}
		fill.Filled += remaining / lvl.Price
		fill.Cost += remaining
		remaining = 0
	}
	fill.Partial = remaining > 0
	finish(&fill)
	return fill, nil
}

func prepare(ladder domain.DepthLadder, target float64) (domain.PriceLevel, error) {
	if math.IsNaN(target) || target <= 0 {
		return domain.PriceLevel{}, fmt.Errorf("depth: target %v: %w", target, domain.ErrInvalidQuantity)
	}
	if err := ladder.Validate(); err != nil {
		return domain.PriceLevel{}, fmt.Errorf("depth: %s %s: %w", ladder.Venue, ladder.OutcomeID, err)
	}
	best, ok := ladder.Best()
	if !ok {
		return domain.PriceLevel{}, fmt.Errorf("depth: %s %s: %w", ladder.Venue, ladder.OutcomeID, domain.ErrNoLiquidity)
	}
	return best, nil
}

// finish derives the average price and the slippage against the best level.
// Slippage is positive when the fill is worse than the top of book.
func finish(f *domain.Fill) {
	if f.Filled <= 0 {
		return
	}
	f.AvgPrice = f.Cost / f.Filled
	if f.BestPrice <= 0 {
		return
	}
	switch f.Side {
	case domain.SideAsk:
		f.SlippagePct = (f.AvgPrice - f.BestPrice) / f.BestPrice * 100
	case domain.SideBid:
		f.SlippagePct = (f.BestPrice - f.AvgPrice) / f.BestPrice * 100
	}
}
