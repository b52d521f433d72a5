package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Adapter is the contract the Ladder Maintenance Engine drives. Every
// method corresponds to one row of the operation table the core
// requires; concrete adapters (Bitfinex-style, mock) translate these
// into venue-native wire calls.
type Adapter interface {
	Name() string

	// PlaceOrder submits a limit order. quoteAmount is set when sizing is
	// quote-denominated; amount is always the base-denominated size
	// pre-rounded to venue precision.
	PlaceOrder(ctx context.Context, side Side, pair string, price, amount decimal.Decimal, quoteAmount decimal.Decimal) (PlaceResult, error)

	CancelOrder(ctx context.Context, orderID string, side Side, pair string) (bool, error)

	CancelAllOrders(ctx context.Context, pair string) (bool, error)

	GetOpenOrders(ctx context.Context, pair string) ([]Order, error)

	// GetOrderDetails is an optional capability; adapters that don't
	// support single-order lookup return (Order{}, false, nil).
	GetOrderDetails(ctx context.Context, orderID string, pair string) (Order, bool, error)

	GetBalances(ctx context.Context, nonzero bool, accountType string) ([]Balance, error)

	GetRates(ctx context.Context, pair string) (Rates, error)

	MarketInfo(ctx context.Context, pair string) (MarketInfo, error)

	Features() Features
}
