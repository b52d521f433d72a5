package builder

import (
	"context"
	"testing"

	"ladderbot/internal/config"
	"ladderbot/internal/exchange/mock"
	"ladderbot/internal/journal"
	"ladderbot/internal/ladder/closer"
	"ladderbot/internal/ladder/guard"
	"ladderbot/internal/ladder/model"
	"ladderbot/internal/ladder/reconcile"
	"ladderbot/pkg/concurrency"
	"ladderbot/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilderWithReInit(t *testing.T, mid float64, n int, reinit bool) (*Builder, *mock.Exchange, journal.Journal, *config.LiveStore) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	ex := mock.New(logger)
	ex.SetBalance("BTC", decimal.NewFromInt(100), decimal.Zero)
	ex.SetBalance("USDT", decimal.NewFromInt(100000), decimal.Zero)

	j := journal.NewMemoryJournal()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "builder-test", MaxWorkers: 4}, logger)

	r := reconcile.New(logger, ex, nil)
	c := closer.New(logger, ex, pool)
	g := guard.New(logger, ex, nil)

	cfg := config.DefaultConfig()
	cfg.Ladder.MidPrice = mid
	cfg.Ladder.Count = n
	cfg.Ladder.ReInit = reinit
	store := config.NewLiveStore(cfg)

	params := Params{
		Pair:          "BTC/USDT",
		Exchange:      "mock",
		Coin1:         "BTC",
		Coin2:         "USDT",
		N:             n,
		StepPercent:   1.0,
		AmountCoin:    "base",
		NominalAmount: decimal.NewFromFloat(0.1),
		AmountJitter:  0, // defaults to pricing.DefaultAmountJitter internally
	}

	b := New(logger, ex, j, r, c, g, store, params)
	return b, ex, j, store
}

func newTestBuilder(t *testing.T, mid float64, n int) (*Builder, *mock.Exchange, journal.Journal, *config.LiveStore) {
	return newTestBuilderWithReInit(t, mid, n, false)
}

// Scenario 1 (cold start): N=4, step=1%, mid=100 produces the exact
// ladder prices from the decision table.
func TestRunIteration_ColdStartProducesExactLadderPrices(t *testing.T) {
	b, _, j, _ := newTestBuilder(t, 100, 4)

	result, err := b.RunIteration(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Aborted)
	assert.Equal(t, 8, result.Placed)

	live, err := j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, live, 8)

	expectedBuys := []string{"99", "98.01", "97.0299"}
	expectedSells := []string{"101", "102.01", "103.0301"}

	for _, o := range live {
		assert.Equal(t, model.StateOpen, o.State)
		assert.False(t, o.IsVirtual)
		assert.NotEmpty(t, o.OrderID)
		if o.Side == model.SideBuy && o.LadderIndex < 3 {
			assert.True(t, o.Price.Sub(mustDecimal(expectedBuys[o.LadderIndex])).Abs().LessThan(decimal.NewFromFloat(0.001)), "buy index %d price %s", o.LadderIndex, o.Price)
		}
		if o.Side == model.SideSell && o.LadderIndex < 3 {
			assert.True(t, o.Price.Sub(mustDecimal(expectedSells[o.LadderIndex])).Abs().LessThan(decimal.NewFromFloat(0.001)), "sell index %d price %s", o.LadderIndex, o.Price)
		}
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Scenario 2: the nearest buy rung fills; the cross-side mirror at
// N-1-0=3 is scheduled "To be removed" the same iteration the fill is
// observed (the Closer purges it only on the following iteration, since
// purge runs before the Reconciler within one pass).
func TestRunIteration_FillSchedulesCrossRemoval(t *testing.T) {
	b, ex, j, _ := newTestBuilder(t, 100, 4)

	_, err := b.RunIteration(context.Background())
	require.NoError(t, err)

	live, err := j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)

	var nearestBuy *model.Order
	for _, o := range live {
		if o.Side == model.SideBuy && o.LadderIndex == 0 {
			nearestBuy = o
		}
	}
	require.NotNil(t, nearestBuy)
	ex.MarkFilled(nearestBuy.OrderID)

	result, err := b.RunIteration(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Aborted)

	live, err = j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)

	// The filled order itself is processed and gone from the live set.
	for _, o := range live {
		assert.NotEqual(t, nearestBuy.RecordKey, o.RecordKey)
	}

	// Its mirror (originally sell index 3) is now flagged for removal,
	// with provenance pointing back at the fill, but still present: the
	// Closer hasn't purged it yet this iteration.
	var mirror *model.Order
	for _, o := range live {
		if o.Side == model.SideSell && o.CrossOrder != nil {
			mirror = o
		}
	}
	require.NotNil(t, mirror)
	assert.Equal(t, model.StateToBeRemoved, mirror.State)
	assert.Equal(t, nearestBuy.OrderID, mirror.CrossOrder.OrderID)

	// A third iteration's Closer purge pass removes it.
	_, err = b.RunIteration(context.Background())
	require.NoError(t, err)
	live, err = j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)
	for _, o := range live {
		assert.NotEqual(t, mirror.RecordKey, o.RecordKey)
	}
}

// Scenario 6 (ladderReInit): the flag cancels every live order and
// clears itself without placing anything new.
func TestRunIteration_ReInitCancelsAllAndClearsFlag(t *testing.T) {
	b, _, j, store := newTestBuilder(t, 100, 4)

	_, err := b.RunIteration(context.Background())
	require.NoError(t, err)
	live, err := j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, live, 8)

	store.SetReInit(true)

	result, err := b.RunIteration(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ReInitiated)
	assert.False(t, store.ReInit())

	live, err = j.Query(context.Background(), journal.Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, live)
}

// ReInit on an already-empty ladder is a trivial success: nothing to
// cancel, so the flag clears on the first call.
func TestRunIteration_ReInitOnEmptyLadderClearsFlagImmediately(t *testing.T) {
	b, _, _, store := newTestBuilderWithReInit(t, 100, 4, true)

	result, err := b.RunIteration(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ReInitiated)
	assert.False(t, store.ReInit())
}
