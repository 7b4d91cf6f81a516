package domain

import "context"

// BookSource supplies the current book for a venue-native instrument
// reference. A source returns ErrMissingQuote when the venue has nothing
// usable for the reference.
type BookSource interface {
	Venue() Venue
	FetchBook(ctx context.Context, ref string) (VenueBook, error)
}

// EventRegistry lists the canonical events to evaluate.
type EventRegistry interface {
	Events(ctx context.Context) ([]CanonicalEvent, error)
}
