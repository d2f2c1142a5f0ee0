// Package store defines the ResultStore capability: an idempotent upsert of
// closing records with same-day uniqueness on (lot_number, price, outcome).
//
// Implementations:
//   - internal/database: PostgreSQL via pgx (unique index + ON CONFLICT DO NOTHING)
//   - internal/store/redis: SETNX on a per-day key
//   - internal/store/memory: in-process expirable LRU
package store

import (
	"context"
	"errors"

	"github.com/rickgao/lotwatch/internal/model"
)

// Result is the outcome of a successful upsert.
type Result int

const (
	Accepted  Result = iota + 1 // Record inserted
	Duplicate                   // Same-day record with identical lot, price and outcome exists
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ErrStore marks failures of the storage backend (unreachable, rejected write).
var ErrStore = errors.New("result store error")

// ResultStore persists closing records.
type ResultStore interface {
	// UpsertClosing inserts rec unless a same-day duplicate exists. Errors wrap
	// ErrStore.
	UpsertClosing(ctx context.Context, rec model.ClosingRecord) (Result, error)
}

// Func adapts a function to ResultStore.
type Func func(ctx context.Context, rec model.ClosingRecord) (Result, error)

func (f Func) UpsertClosing(ctx context.Context, rec model.ClosingRecord) (Result, error) {
	return f(ctx, rec)
}
