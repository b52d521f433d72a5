// Package model defines the ladder's persisted order record and its
// state machine, independent of any storage backend or exchange.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the ladder order state machine. The string values are the
// externally visible, persisted representation (journal rows and logs),
// per the stringly-typed-but-intentional design in the source material.
type State string

const (
	StateUndefined     State = "undefined" // never persisted; synonymous with "no record yet"
	StateNotPlaced     State = "Not placed"
	StateOpen          State = "Open"
	StatePartlyFilled  State = "Partly filled"
	StateFilled        State = "Filled"
	StateMissed        State = "Missed"
	StateToBeRemoved   State = "To be removed"
	StateRemoved       State = "Removed"
	StateCancelled     State = "Cancelled"
)

// Side is the ladder order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// CrossOrderRef records provenance when a fill retires the cross-side
// mirror order, per §3's ladderCrossOrder* fields.
type CrossOrderRef struct {
	OrderID string
	Index   int
	Type    Side
	Price   decimal.Decimal
}

// Order is the journal entity described in spec §3: one ladder rung's
// order record, identified by (Purpose, Pair, Exchange, Side, LadderIndex)
// while non-processed.
type Order struct {
	// RecordKey is the journal row's stable identity, assigned once at
	// creation and never reused, so that replacing a virtual surrogate
	// with an exchange-assigned OrderID does not orphan the record.
	RecordKey string

	// Identity
	OrderID  string // exchange-assigned once placed; surrogate while virtual
	Purpose  string // always "ladder"
	Pair     string
	Exchange string
	Side     Side

	// Pricing / sizing
	Price              decimal.Decimal
	Coin1Amount        decimal.Decimal // base
	Coin2Amount        decimal.Decimal // quote
	Coin1AmountInitial decimal.Decimal

	// Ladder bookkeeping
	LadderIndex             int
	LadderPreviousIndex     int
	LadderPreviousOrderID   string
	LadderReplacedByOrderID string

	State                 State
	NotPlacedReason        string
	PreviousState          State
	PreviousNotPlacedReason string

	CrossOrder *CrossOrderRef

	IsVirtual   bool // no exchange-assigned ID yet
	IsProcessed bool
	IsExecuted  bool
	IsClosed    bool
	IsCancelled bool

	CreatedAt        time.Time
	LadderUpdateDate time.Time
}

// Transition moves the order to newState, recording the prior state and
// reason per invariant "ladderPreviousState equals the state held before
// the transition" (§8).
func (o *Order) Transition(newState State, reason string) {
	o.PreviousState = o.State
	o.PreviousNotPlacedReason = o.NotPlacedReason
	o.State = newState
	o.NotPlacedReason = reason
	o.LadderUpdateDate = time.Now()
}

// MarkProcessed flags the record as terminal; per invariant 4, a
// processed record must never be mutated again except for index-shift
// bookkeeping.
func (o *Order) MarkProcessed() {
	o.IsProcessed = true
}

// IsLive reports whether the order still occupies a ladder slot (i.e.
// has not been retired).
func (o *Order) IsLive() bool {
	return !o.IsProcessed
}

// InRange reports whether LadderIndex falls in the canonical [0, n) range.
func (o *Order) InRange(n int) bool {
	return o.LadderIndex >= 0 && o.LadderIndex < n
}

// DefaultPreviousFilledOrderStates is the fallback whitelist for the
// Reconciler's fill-confirmation heuristic (§4.3 step 2, §9 design note)
// when configuration leaves it empty.
var DefaultPreviousFilledOrderStates = []State{StateFilled, StateMissed}
