package domain

import "fmt"

// Direction is one of the two complementary pairings of a two-outcome event
// across venue A and venue B. No other pairing exists, so the type is closed.
type Direction uint8

const (
	// DirectionFirstOnA buys outcome[0] on venue A and outcome[1] on venue B.
	DirectionFirstOnA Direction = iota + 1
	// DirectionSecondOnA buys outcome[1] on venue A and outcome[0] on venue B.
	DirectionSecondOnA
)

// Directions returns both pairing directions in a stable order.
func Directions() [2]Direction {
	return [2]Direction{DirectionFirstOnA, DirectionSecondOnA}
}

// Valid reports whether d is one of the two pairing directions.
func (d Direction) Valid() bool {
	return d == DirectionFirstOnA || d == DirectionSecondOnA
}

func (d Direction) String() string {
	switch d {
	case DirectionFirstOnA:
		return "first_on_a"
	case DirectionSecondOnA:
		return "second_on_a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection is the inverse of String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "first_on_a":
		return DirectionFirstOnA, nil
	case "second_on_a":
		return DirectionSecondOnA, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Outcomes returns the outcome bought on venue A and the one bought on venue B.
func (d Direction) Outcomes(e CanonicalEvent) (onA, onB EventOutcome, err error) {
	switch d {
	case DirectionFirstOnA:
		return e.Outcomes[0], e.Outcomes[1], nil
	case DirectionSecondOnA:
		return e.Outcomes[1], e.Outcomes[0], nil
	default:
		return EventOutcome{}, EventOutcome{}, fmt.Errorf("outcomes: invalid direction %d", uint8(d))
	}
}

// VenuePair names the two venues an evaluator compares.
type VenuePair struct {
	A Venue
	B Venue
}
