// Package sqlite persists candidates, closed opportunities and the audit log
// in a local SQLite file (pure Go, no cgo). It backs single-box runs and
// tests; deployments with a shared database use the postgres package.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as unix nanoseconds so range filters compare
// integers rather than driver-formatted strings.
const schema = `
CREATE TABLE IF NOT EXISTS candidates (
    id                TEXT PRIMARY KEY,
    event_id          TEXT    NOT NULL,
    event_name        TEXT    NOT NULL DEFAULT '',
    direction         TEXT    NOT NULL,
    leg_a_venue       TEXT    NOT NULL,
    leg_a_outcome     TEXT    NOT NULL,
    leg_a_ref         TEXT    NOT NULL,
    leg_a_price       REAL    NOT NULL,
    leg_a_fee         REAL    NOT NULL,
    leg_a_liquidity   TEXT    NOT NULL,
    leg_a_observed_ns INTEGER NOT NULL,
    leg_b_venue       TEXT    NOT NULL,
    leg_b_outcome     TEXT    NOT NULL,
    leg_b_ref         TEXT    NOT NULL,
    leg_b_price       REAL    NOT NULL,
    leg_b_fee         REAL    NOT NULL,
    leg_b_liquidity   TEXT    NOT NULL,
    leg_b_observed_ns INTEGER NOT NULL,
    quantity          REAL    NOT NULL,
    gross_cost        REAL    NOT NULL,
    payout            REAL    NOT NULL,
    gross_profit      REAL    NOT NULL,
    fixed_cost        REAL    NOT NULL DEFAULT 0,
    fees              REAL    NOT NULL,
    net_profit        REAL    NOT NULL,
    roi_pct           REAL    NOT NULL,
    evaluated_ns      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_opportunities (
    id                  TEXT PRIMARY KEY,
    event_id            TEXT    NOT NULL,
    event_name          TEXT    NOT NULL DEFAULT '',
    direction           TEXT    NOT NULL,
    started_ns          INTEGER NOT NULL,
    ended_ns            INTEGER NOT NULL,
    closed_ns           INTEGER NOT NULL,
    duration_ns         INTEGER NOT NULL,
    peak_net_pct        REAL    NOT NULL,
    trough_net_pct      REAL    NOT NULL,
    peak_net_profit_usd REAL    NOT NULL,
    observations        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event      TEXT    NOT NULL,
    detail     TEXT,
    created_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_evaluated ON candidates(evaluated_ns DESC);
CREATE INDEX IF NOT EXISTS idx_closed_closed        ON closed_opportunities(closed_ns DESC);
CREATE INDEX IF NOT EXISTS idx_audit_created        ON audit_log(created_ns DESC);
`

// DB is an open SQLite database with the arbbot schema applied.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// SQLite is single-writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Health pings the database.
func (d *DB) Health(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check: %w", err)
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
