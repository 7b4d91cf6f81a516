package arbitrage

import (
	"fmt"

	"github.com/steffenmax/arbbot/internal/domain"
)

// LegRef addresses the instrument bought by one leg.
type LegRef struct {
	Venue     domain.Venue
	OutcomeID string
	Ref       string
}

// Pairing is one of the two complementary trades of an event: one outcome
// bought on venue A, the other on venue B.
type Pairing struct {
	EventID   string
	Direction domain.Direction
	A         LegRef
	B         LegRef
}

// Key returns the lifecycle key of the pairing.
func (p Pairing) Key() domain.OpportunityKey {
	return domain.OpportunityKey{EventID: p.EventID, Direction: p.Direction}
}

// NewPairing builds a pairing from two legs. Legs betting the same outcome
// are not complementary and are rejected with ErrInvalidPairing, as are legs
// on the same venue.
func NewPairing(eventID string, dir domain.Direction, a, b LegRef) (Pairing, error) {
	if !dir.Valid() {
		return Pairing{}, fmt.Errorf("%w: event %s: direction %s", domain.ErrInvalidPairing, eventID, dir)
	}
	if a.OutcomeID == b.OutcomeID {
		return Pairing{}, fmt.Errorf("%w: event %s %s: outcome %q on %s and %s",
			domain.ErrInvalidPairing, eventID, dir, a.OutcomeID, a.Venue, b.Venue)
	}
	if a.Venue == b.Venue {
		return Pairing{}, fmt.Errorf("%w: event %s %s: both legs on %s",
			domain.ErrInvalidPairing, eventID, dir, a.Venue)
	}
	return Pairing{EventID: eventID, Direction: dir, A: a, B: b}, nil
}

// PairingFor resolves the pairing of event e in direction dir across venues.
// It returns ErrMissingQuote when either venue does not list its outcome.
func PairingFor(e domain.CanonicalEvent, dir domain.Direction, venues domain.VenuePair) (Pairing, error) {
	onA, onB, err := dir.Outcomes(e)
	if err != nil {
		return Pairing{}, fmt.Errorf("%w: event %s: %w", domain.ErrInvalidPairing, e.ID, err)
	}
	refA, ok := onA.Ref(venues.A)
	if !ok {
		return Pairing{}, fmt.Errorf("%w: event %s: %s not listed on %s", domain.ErrMissingQuote, e.ID, onA.ID, venues.A)
	}
	refB, ok := onB.Ref(venues.B)
	if !ok {
		return Pairing{}, fmt.Errorf("%w: event %s: %s not listed on %s", domain.ErrMissingQuote, e.ID, onB.ID, venues.B)
	}
	return NewPairing(e.ID, dir,
		LegRef{Venue: venues.A, OutcomeID: onA.ID, Ref: refA},
		LegRef{Venue: venues.B, OutcomeID: onB.ID, Ref: refB},
	)
}
