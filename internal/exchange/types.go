// Package exchange defines the venue-agnostic contract the ladder engine
// drives: a uniform set of operations over place/cancel/query/balance,
// independent of any one exchange's wire format.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Status is the exchange-reported order status, normalized across venues.
type Status string

const (
	StatusNew         Status = "new"
	StatusPartFilled  Status = "part_filled"
	StatusFilled      Status = "filled"
	StatusCancelled   Status = "cancelled"
)

// Order is one exchange open-order entry, as returned by GetOpenOrders or
// GetOrderDetails.
type Order struct {
	OrderID       string
	Pair          string
	Side          Side
	Price         decimal.Decimal
	Amount        decimal.Decimal
	AmountExecuted decimal.Decimal
	AmountLeft    decimal.Decimal
	Status        Status
}

// PlaceResult is the outcome of a PlaceOrder call. OrderID is empty when
// Success is false.
type PlaceResult struct {
	OrderID string
	Success bool
	Message string
}

// Balance is one coin's balance snapshot, including zero balances (the
// Balance Guard needs to see coins it holds none of, not just nonzero
// ones).
type Balance struct {
	Code   string
	Free   decimal.Decimal
	Frozen decimal.Decimal
	Total  decimal.Decimal
}

// Rates is the current top-of-book snapshot. The ladder's mid-price
// comes from configuration, not from Rates; the entrypoint's exchange
// health check is the only caller of GetRates.
type Rates struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Volume decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
}

// MarketInfo is venue precision/limits metadata for one pair.
type MarketInfo struct {
	Coin1Decimals  int
	Coin2Decimals  int
	Coin1MinAmount decimal.Decimal
	Coin1MaxAmount decimal.Decimal
}

// Features describes adapter capabilities the engine adapts its
// behavior to, notably the Scheduler's interval floor.
type Features struct {
	// OpenOrdersCacheSec is how long the venue's open-orders listing may
	// lag reality; the Scheduler's minimum tick interval is derived from
	// it so the engine never polls faster than the cache can refresh.
	OpenOrdersCacheSec int
	OrderNumberLimit   int
	SupportsOrderDetail bool
}

// NormalizeTimestamp converts a millisecond exchange timestamp to time.Time,
// returning the zero value for 0 (the "never" sentinel many venues use).
func NormalizeTimestamp(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
