// Package journal implements the persisted order-record store the
// Ladder Builder and Reconciler read and write every iteration (spec
// §4.8). No cross-record transactional guarantees are required;
// correctness is re-established by each iteration's reconciliation.
package journal

import (
	"context"

	"ladderbot/internal/ladder/model"
)

// Query describes the journal lookup the engine performs at the start of
// every iteration and again after the builder's placement pass.
type Query struct {
	Purpose    string
	Pair       string
	Exchange   string
	Processed  *bool // nil means "don't filter on processed"
}

// Journal is the contract consumed by the ladder engine. Persist and
// Update both operate per-record; there is no multi-record transaction.
type Journal interface {
	// Query returns the ordered set of records matching q. Records are
	// ordered by (Side, LadderIndex) so callers can walk ascending
	// indices directly.
	Query(ctx context.Context, q Query) ([]*model.Order, error)

	// Persist writes the whole record, creating it if OrderID/surrogate
	// key is new.
	Persist(ctx context.Context, order *model.Order) error

	// Update applies a partial mutation already made to order in memory,
	// optionally requesting an immediate flush (flush is a no-op for
	// backends without buffering, e.g. MemoryJournal).
	Update(ctx context.Context, order *model.Order, flush bool) error
}
