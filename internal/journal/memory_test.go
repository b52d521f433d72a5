package journal

import (
	"context"
	"testing"

	"ladderbot/internal/ladder/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(pair string, side model.Side, index int, state model.State) *model.Order {
	return &model.Order{
		RecordKey:   uuid.NewString(),
		Purpose:     "ladder",
		Pair:        pair,
		Exchange:    "mock",
		Side:        side,
		LadderIndex: index,
		State:       state,
		Price:       decimal.NewFromInt(100),
	}
}

func TestMemoryJournal_PersistAndQuery(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	o1 := newOrder("BTC/USDT", model.SideBuy, 0, model.StateOpen)
	o2 := newOrder("BTC/USDT", model.SideSell, 0, model.StateOpen)

	require.NoError(t, j.Persist(ctx, o1))
	require.NoError(t, j.Persist(ctx, o2))

	results, err := j.Query(ctx, Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryJournal_QueryFiltersProcessed(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	live := newOrder("BTC/USDT", model.SideBuy, 0, model.StateOpen)
	processed := newOrder("BTC/USDT", model.SideBuy, 1, model.StateFilled)
	processed.IsProcessed = true

	require.NoError(t, j.Persist(ctx, live))
	require.NoError(t, j.Persist(ctx, processed))

	notProcessed := false
	results, err := j.Query(ctx, Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock", Processed: &notProcessed})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, live.RecordKey, results[0].RecordKey)
}

func TestMemoryJournal_UpdatePreservesRecordKeyAcrossOrderIDChange(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	o := newOrder("BTC/USDT", model.SideBuy, 0, model.StateNotPlaced)
	o.IsVirtual = true
	o.OrderID = "virtual-" + o.RecordKey
	require.NoError(t, j.Persist(ctx, o))

	o.LadderPreviousOrderID = o.OrderID
	o.OrderID = "exchange-12345"
	o.IsVirtual = false
	o.Transition(model.StateOpen, "")
	require.NoError(t, j.Update(ctx, o, true))

	results, err := j.Query(ctx, Query{Purpose: "ladder", Pair: "BTC/USDT", Exchange: "mock"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exchange-12345", results[0].OrderID)
	assert.Equal(t, model.StateOpen, results[0].State)
	assert.Equal(t, model.StateNotPlaced, results[0].PreviousState)
}
