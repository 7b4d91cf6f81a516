package domain

import "time"

// CycleReport is everything one evaluation cycle produced.
type CycleReport struct {
	ID         string               `json:"id"`
	At         time.Time            `json:"at"`
	Elapsed    time.Duration        `json:"elapsed"`
	Events     int                  `json:"events"`
	Candidates []ArbitrageCandidate `json:"candidates"`
	Sizing     []SizingReport       `json:"sizing"`
	Opened     []Opportunity        `json:"opened"`
	Closed     []ClosedOpportunity  `json:"closed"`
	// Skipped counts legs or pairings dropped this cycle by reason.
	Skipped map[string]int `json:"skipped"`
}
