package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")

	// Quote availability. Both are expected steady-state outcomes and never
	// abort a cycle.
	ErrMissingQuote = errors.New("missing quote")
	ErrStaleQuote   = errors.New("stale quote")

	// ErrInvalidPairing is returned when both legs of a pairing reference the
	// same outcome.
	ErrInvalidPairing = errors.New("invalid pairing: both legs reference the same outcome")

	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrNoLiquidity           = errors.New("no liquidity")
	ErrNoProfitableQuantity  = errors.New("no profitable quantity")

	ErrPriceOutOfRange      = errors.New("price outside [0,1]")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidLadder        = errors.New("invalid depth ladder")
	ErrLiquidityUnspecified = errors.New("liquidity flag not specified")
	ErrInvalidEvent         = errors.New("invalid canonical event")
	ErrCycleOutOfOrder      = errors.New("cycle time precedes previous cycle")
)
