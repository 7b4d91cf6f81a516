package domain

import "time"

// OpportunityKey identifies a tracked opportunity across cycles.
type OpportunityKey struct {
	EventID   string    `json:"event_id"`
	Direction Direction `json:"direction"`
}

func (k OpportunityKey) String() string {
	return k.EventID + "/" + k.Direction.String()
}

// Opportunity is a live, tracked arbitrage window.
type Opportunity struct {
	Key              OpportunityKey `json:"key"`
	EventName        string         `json:"event_name"`
	StartedAt        time.Time      `json:"started_at"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
	PeakNetPct       float64        `json:"peak_net_pct"`
	TroughNetPct     float64        `json:"trough_net_pct"`
	LastNetPct       float64        `json:"last_net_pct"`
	PeakNetProfitUSD float64        `json:"peak_net_profit_usd"`
	Observations     int            `json:"observations"`
}

// Duration is the observed lifetime so far: last seen minus start.
func (o Opportunity) Duration() time.Duration {
	return o.LastSeenAt.Sub(o.StartedAt)
}

// ClosedOpportunity is the immutable history record emitted the first cycle
// an opportunity is no longer present.
type ClosedOpportunity struct {
	ID               string         `json:"id"`
	Key              OpportunityKey `json:"key"`
	EventName        string         `json:"event_name"`
	StartedAt        time.Time      `json:"started_at"`
	EndedAt          time.Time      `json:"ended_at"`
	ClosedAt         time.Time      `json:"closed_at"`
	Duration         time.Duration  `json:"duration"`
	PeakNetPct       float64        `json:"peak_net_pct"`
	TroughNetPct     float64        `json:"trough_net_pct"`
	PeakNetProfitUSD float64        `json:"peak_net_profit_usd"`
	Observations     int            `json:"observations"`
}

// ActiveOpportunity is a live opportunity as seen at a point in time.
type ActiveOpportunity struct {
	Opportunity
	// Running is the time elapsed since the opportunity opened.
	Running time.Duration `json:"running"`
}
