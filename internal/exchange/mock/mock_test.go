package mock

import (
	"context"
	"testing"

	"ladderbot/internal/exchange"
	"ladderbot/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	return New(logger)
}

func TestPlaceOrder_Success(t *testing.T) {
	ex := newTestExchange(t)

	res, err := ex.PlaceOrder(context.Background(), exchange.SideBuy, "BTC/USDT", decimal.NewFromInt(99), decimal.NewFromFloat(0.1), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.OrderID)

	orders, err := ex.GetOpenOrders(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, exchange.StatusNew, orders[0].Status)
}

func TestPlaceOrder_BelowMinimum(t *testing.T) {
	ex := newTestExchange(t)

	res, err := ex.PlaceOrder(context.Background(), exchange.SideBuy, "BTC/USDT", decimal.NewFromInt(99), decimal.NewFromFloat(0.00001), decimal.Zero)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestMarkFilled(t *testing.T) {
	ex := newTestExchange(t)

	res, err := ex.PlaceOrder(context.Background(), exchange.SideBuy, "BTC/USDT", decimal.NewFromInt(99), decimal.NewFromFloat(0.1), decimal.Zero)
	require.NoError(t, err)

	ex.MarkFilled(res.OrderID)

	order, ok, err := ex.GetOrderDetails(context.Background(), res.OrderID, "BTC/USDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, exchange.StatusFilled, order.Status)
}

func TestCancelOrder(t *testing.T) {
	ex := newTestExchange(t)

	res, err := ex.PlaceOrder(context.Background(), exchange.SideSell, "BTC/USDT", decimal.NewFromInt(101), decimal.NewFromFloat(0.1), decimal.Zero)
	require.NoError(t, err)

	ok, err := ex.CancelOrder(context.Background(), res.OrderID, exchange.SideSell, "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, ok)

	orders, err := ex.GetOpenOrders(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Len(t, orders, 0)
}

func TestGetBalances_FiltersZero(t *testing.T) {
	ex := newTestExchange(t)
	ex.SetBalance("BTC", decimal.NewFromInt(1), decimal.Zero)
	ex.SetBalance("USDT", decimal.Zero, decimal.Zero)

	balances, err := ex.GetBalances(context.Background(), true, "")
	require.NoError(t, err)
	assert.Len(t, balances, 1)
	assert.Equal(t, "BTC", balances[0].Code)
}
