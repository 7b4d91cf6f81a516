package domain

import (
	"fmt"
	"strings"
	"time"
)

// Venue identifies an independent prediction-market platform.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Valid reports whether v is a venue the system knows how to quote.
func (v Venue) Valid() bool {
	switch v {
	case VenueKalshi, VenuePolymarket:
		return true
	default:
		return false
	}
}

// ParseVenue normalises a venue name from configuration or a registry file.
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown venue %q", s)
	}
	return v, nil
}

// EventOutcome is one of the two mutually exclusive results of a canonical
// event together with the venue-native reference for each venue that lists it.
type EventOutcome struct {
	ID   string           `json:"id" yaml:"id"`
	Name string           `json:"name" yaml:"name"`
	Refs map[Venue]string `json:"refs" yaml:"refs"`
}

// Ref returns the outcome's reference on venue v.
func (o EventOutcome) Ref(v Venue) (string, bool) {
	ref, ok := o.Refs[v]
	if !ok || strings.TrimSpace(ref) == "" {
		return "", false
	}
	return ref, true
}

// CanonicalEvent is a real-world binary event resolved across venues.
type CanonicalEvent struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	StartsAt time.Time       `json:"starts_at" yaml:"starts_at"`
	Outcomes [2]EventOutcome `json:"outcomes" yaml:"outcomes"`
}

// Validate checks that the event carries exactly two distinct complementary
// outcomes and that no venue reference is shared between them.
func (e CanonicalEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEvent)
	}
	a, b := e.Outcomes[0], e.Outcomes[1]
	if a.ID == "" || b.ID == "" {
		return fmt.Errorf("%w: event %s: outcome id must not be empty", ErrInvalidEvent, e.ID)
	}
	if a.ID == b.ID {
		return fmt.Errorf("%w: event %s: outcomes share id %q", ErrInvalidEvent, e.ID, a.ID)
	}
	for _, o := range e.Outcomes {
		for v := range o.Refs {
			if !v.Valid() {
				return fmt.Errorf("%w: event %s: outcome %s: unknown venue %q", ErrInvalidEvent, e.ID, o.ID, v)
			}
		}
	}
	for v, refA := range a.Refs {
		if refB, ok := b.Refs[v]; ok && refA != "" && refA == refB {
			return fmt.Errorf("%w: event %s: both outcomes use %s reference %q", ErrInvalidEvent, e.ID, v, refA)
		}
	}
	return nil
}

// Outcome returns the outcome with the given id.
func (e CanonicalEvent) Outcome(id string) (EventOutcome, bool) {
	for _, o := range e.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return EventOutcome{}, false
}
