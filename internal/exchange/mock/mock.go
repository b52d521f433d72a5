// Package mock implements exchange.Adapter entirely in memory, for tests
// and for running the ladder engine against scenario fixtures (spec §8)
// without a live venue.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"

	"github.com/shopspring/decimal"
)

// Exchange is an in-memory exchange.Adapter. Orders placed through it are
// tracked in a map and can be marked filled/cancelled by tests to drive
// the Reconciler through specific scenarios.
type Exchange struct {
	logger core.ILogger

	mu       sync.RWMutex
	orders   map[string]*exchange.Order
	balances map[string]exchange.Balance
	rates    exchange.Rates
	minfo    exchange.MarketInfo
	features exchange.Features

	nextID int64
}

// New creates a mock exchange with empty balances and no open orders.
func New(logger core.ILogger) *Exchange {
	return &Exchange{
		logger:   logger.WithField("exchange", "mock"),
		orders:   make(map[string]*exchange.Order),
		balances: make(map[string]exchange.Balance),
		rates:    exchange.Rates{Bid: decimal.NewFromInt(100), Ask: decimal.NewFromInt(100)},
		minfo: exchange.MarketInfo{
			Coin1Decimals:  8,
			Coin2Decimals:  5,
			Coin1MinAmount: decimal.NewFromFloat(0.0001),
			Coin1MaxAmount: decimal.NewFromInt(1000),
		},
		features: exchange.Features{OpenOrdersCacheSec: 1, OrderNumberLimit: 1000, SupportsOrderDetail: true},
	}
}

func (e *Exchange) Name() string { return "mock" }

// SetBalance seeds a coin's balance, used by tests to construct scenario
// 5's shortfall fixture.
func (e *Exchange) SetBalance(code string, free, frozen decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := free.Add(frozen)
	e.balances[code] = exchange.Balance{Code: code, Free: free, Frozen: frozen, Total: total}
}

// SetRates overrides the ticker snapshot GetRates returns.
func (e *Exchange) SetRates(r exchange.Rates) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates = r
}

// MarkFilled marks an order as fully filled, simulating an exchange
// reporting the fill on the next GetOpenOrders/GetOrderDetails call.
func (e *Exchange) MarkFilled(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		o.Status = exchange.StatusFilled
		o.AmountExecuted = o.Amount
		o.AmountLeft = decimal.Zero
	}
}

// MarkStatus forces an arbitrary status, used for the ambiguous-fill
// scenario (§8 scenario 4) where the adapter reports "new" despite a
// locally recorded fill.
func (e *Exchange) MarkStatus(orderID string, status exchange.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		o.Status = status
	}
}

func (e *Exchange) PlaceOrder(ctx context.Context, side exchange.Side, pair string, price, amount decimal.Decimal, quoteAmount decimal.Decimal) (exchange.PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount.LessThan(e.minfo.Coin1MinAmount) {
		return exchange.PlaceResult{Success: false, Message: "amount below minimum"}, nil
	}

	id := atomic.AddInt64(&e.nextID, 1)
	orderID := fmt.Sprintf("mock-%d", id)

	e.orders[orderID] = &exchange.Order{
		OrderID: orderID,
		Pair:    pair,
		Side:    side,
		Price:   price,
		Amount:  amount,
		AmountLeft: amount,
		Status:  exchange.StatusNew,
	}

	return exchange.PlaceResult{OrderID: orderID, Success: true}, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string, side exchange.Side, pair string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[orderID]; !ok {
		return false, nil
	}
	delete(e.orders, orderID)
	return true, nil
}

func (e *Exchange) CancelAllOrders(ctx context.Context, pair string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, o := range e.orders {
		if o.Pair == pair {
			delete(e.orders, id)
		}
	}
	return true, nil
}

func (e *Exchange) GetOpenOrders(ctx context.Context, pair string) ([]exchange.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	orders := make([]exchange.Order, 0, len(e.orders))
	for _, o := range e.orders {
		if o.Pair == pair {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (e *Exchange) GetOrderDetails(ctx context.Context, orderID string, pair string) (exchange.Order, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[orderID]
	if !ok {
		return exchange.Order{}, false, nil
	}
	return *o, true, nil
}

func (e *Exchange) GetBalances(ctx context.Context, nonzero bool, accountType string) ([]exchange.Balance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	balances := make([]exchange.Balance, 0, len(e.balances))
	for _, b := range e.balances {
		if nonzero && b.Total.IsZero() {
			continue
		}
		balances = append(balances, b)
	}
	return balances, nil
}

func (e *Exchange) GetRates(ctx context.Context, pair string) (exchange.Rates, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rates, nil
}

func (e *Exchange) MarketInfo(ctx context.Context, pair string) (exchange.MarketInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.minfo, nil
}

func (e *Exchange) Features() exchange.Features {
	return e.features
}
