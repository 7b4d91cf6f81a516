package domain

import "time"

// Leg is one side of a cross-venue trade: one outcome bought on one venue.
type Leg struct {
	Venue      Venue     `json:"venue"`
	OutcomeID  string    `json:"outcome_id"`
	Ref        string    `json:"ref"`
	Price      float64   `json:"price"`
	Fee        float64   `json:"fee"`
	Liquidity  Liquidity `json:"liquidity"`
	ObservedAt time.Time `json:"observed_at"`
}

// ArbitrageCandidate is a priced pairing at its net-profit-maximising
// quantity. Candidates are recomputed every cycle and never mutated.
type ArbitrageCandidate struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	EventName   string    `json:"event_name"`
	Direction   Direction `json:"direction"`
	LegA        Leg       `json:"leg_a"`
	LegB        Leg       `json:"leg_b"`
	Quantity    float64   `json:"quantity"`
	GrossCost   float64   `json:"gross_cost"`
	Payout      float64   `json:"payout"`
	GrossProfit float64   `json:"gross_profit"`
	FixedCost   float64   `json:"fixed_cost"`
	Fees        float64   `json:"fees"`
	NetProfit   float64   `json:"net_profit"`
	ROIPct      float64   `json:"roi_pct"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Key returns the lifecycle key of the candidate.
func (c ArbitrageCandidate) Key() OpportunityKey {
	return OpportunityKey{EventID: c.EventID, Direction: c.Direction}
}

// PriceSum is the combined ask price of both legs.
func (c ArbitrageCandidate) PriceSum() float64 {
	return c.LegA.Price + c.LegB.Price
}
