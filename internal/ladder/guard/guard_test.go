package guard

import (
	"context"
	"testing"

	"ladderbot/internal/exchange/mock"
	"ladderbot/internal/ladder/model"
	"ladderbot/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardExchange(t *testing.T) *mock.Exchange {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := mock.New(logger)
	ex.SetBalance("BTC", decimal.NewFromFloat(0.01), decimal.Zero)
	ex.SetBalance("USDT", decimal.NewFromFloat(50), decimal.Zero)
	return ex
}

func TestCheck_SellSideInsufficientBase(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := newGuardExchange(t)
	g := New(logger, ex, nil)

	result := g.Check(context.Background(), "BTC/USDT", "BTC", "USDT", model.SideSell, 0, 4, decimal.NewFromFloat(0.1), decimal.NewFromInt(10))

	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Message)
}

func TestCheck_BuySideInsufficientQuote(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := newGuardExchange(t)
	g := New(logger, ex, nil)

	result := g.Check(context.Background(), "BTC/USDT", "BTC", "USDT", model.SideBuy, 0, 4, decimal.NewFromFloat(0.1), decimal.NewFromInt(1000))

	assert.False(t, result.OK)
}

func TestCheck_SufficientBalancePasses(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := mock.New(logger)
	ex.SetBalance("BTC", decimal.NewFromInt(10), decimal.Zero)
	ex.SetBalance("USDT", decimal.NewFromInt(10000), decimal.Zero)
	g := New(logger, ex, nil)

	result := g.Check(context.Background(), "BTC/USDT", "BTC", "USDT", model.SideBuy, 0, 4, decimal.NewFromFloat(0.1), decimal.NewFromInt(10))

	assert.True(t, result.OK)
}

func TestNearSpreadThreshold_MatchesCeilFormula(t *testing.T) {
	assert.Equal(t, 2, nearSpreadThreshold(4))
	assert.Equal(t, 4, nearSpreadThreshold(10))
	assert.Equal(t, 1, nearSpreadThreshold(1))
}

func TestCheck_ZeroBalanceCoinStillEvaluates(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := mock.New(logger)
	// Neither coin has ever been seeded; a coin absent from the snapshot
	// must be treated as a zero balance, not skipped.
	balances, err := ex.GetBalances(context.Background(), false, "")
	require.NoError(t, err)
	assert.Empty(t, balances)

	g := New(logger, ex, nil)
	result := g.Check(context.Background(), "BTC/USDT", "BTC", "USDT", model.SideSell, 0, 4, decimal.NewFromFloat(0.1), decimal.Zero)
	assert.False(t, result.OK)
}
