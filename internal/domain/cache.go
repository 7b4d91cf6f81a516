package domain

import (
	"context"
	"time"
)

// BookCache stores the latest observed book per venue instrument.
type BookCache interface {
	SetBook(ctx context.Context, book VenueBook) error
	GetBook(ctx context.Context, venue Venue, ref string) (VenueBook, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Channels and streams the scanner publishes on.
const (
	ChannelCandidates = "arb:candidates"
	ChannelOpened     = "arb:opened"
	ChannelClosed     = "arb:closed"
	StreamClosed      = "stream:arb:closed"
)

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
