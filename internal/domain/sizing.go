package domain

// Fill is the result of walking a depth ladder towards a target.
type Fill struct {
	Side        Side    `json:"side"`
	Requested   float64 `json:"requested"`
	Filled      float64 `json:"filled"`
	Cost        float64 `json:"cost"`
	AvgPrice    float64 `json:"avg_price"`
	BestPrice   float64 `json:"best_price"`
	SlippagePct float64 `json:"slippage_pct"`
	LevelsUsed  int     `json:"levels_used"`
	// Partial is set when the ladder ran out before the target was met.
	Partial bool `json:"partial"`
}

// Err returns ErrInsufficientLiquidity for partial fills.
func (f Fill) Err() error {
	if f.Partial {
		return ErrInsufficientLiquidity
	}
	return nil
}

// TierEstimate is the depth-realised outcome of deploying a fixed amount of
// capital into a candidate.
type TierEstimate struct {
	CapitalUSD   float64 `json:"capital_usd"`
	Quantity     float64 `json:"quantity"`
	Feasible     bool    `json:"feasible"`
	FillA        Fill    `json:"fill_a"`
	FillB        Fill    `json:"fill_b"`
	BlendedPrice float64 `json:"blended_price"`
	Fees         float64 `json:"fees"`
	NetProfit    float64 `json:"net_profit"`
	ROIPct       float64 `json:"roi_pct"`
	Reason       string  `json:"reason,omitempty"`
}

// SizingReport holds the tier estimates for one candidate.
type SizingReport struct {
	CandidateID string         `json:"candidate_id"`
	Key         OpportunityKey `json:"key"`
	Tiers       []TierEstimate `json:"tiers"`
}
