package pricing

import (
	"testing"

	"ladderbot/internal/ladder/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFirstPrice_ColdStart(t *testing.T) {
	mid := decimal.NewFromInt(100)

	buy := FirstPrice(model.SideBuy, mid, 1)
	sell := FirstPrice(model.SideSell, mid, 1)

	assert.True(t, buy.Sub(decimal.NewFromFloat(99.00)).Abs().LessThan(decimal.NewFromFloat(0.0001)))
	assert.True(t, sell.Sub(decimal.NewFromFloat(101.00)).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}

func TestPriceForIndex_ColdStartLadder(t *testing.T) {
	mid := decimal.NewFromInt(100)

	expectedBuys := []float64{99.00, 98.01, 97.0299, 96.059601}
	for i, want := range expectedBuys {
		got := PriceForIndex(model.SideBuy, mid, 1, i)
		assert.InDelta(t, want, got.InexactFloat64(), 0.001, "buy index %d", i)
	}

	expectedSells := []float64{101.00, 102.01, 103.0301, 104.060401}
	for i, want := range expectedSells {
		got := PriceForIndex(model.SideSell, mid, 1, i)
		assert.InDelta(t, want, got.InexactFloat64(), 0.001, "sell index %d", i)
	}
}

func TestNextPrice_Monotonicity(t *testing.T) {
	p0 := decimal.NewFromFloat(96.059601)
	p1 := NextPrice(model.SideBuy, p0, 1)
	want := p0.Mul(decimal.NewFromFloat(0.99))
	assert.True(t, p1.Sub(want).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}

func TestSizeForIndex_ZeroJitterFallsBackToDefaultRange(t *testing.T) {
	res := SizeForIndex("base", decimal.NewFromFloat(0.1), decimal.NewFromInt(100), 0)
	// jitter 0 falls back to DefaultAmountJitter, so the amount lands in
	// [0.098, 0.102], inside the asserted bounds whatever the random draw.
	assert.True(t, res.Coin1Amount.GreaterThan(decimal.NewFromFloat(0.1*0.97)))
	assert.True(t, res.Coin1Amount.LessThan(decimal.NewFromFloat(0.1*1.03)))
	assert.Equal(t, res.Coin1Amount.Mul(decimal.NewFromInt(100)).String(), res.Coin2Amount.String())
}

func TestSizeForIndex_QuoteDenominated(t *testing.T) {
	res := SizeForIndex("quote", decimal.NewFromInt(10), decimal.NewFromInt(100), 0)
	assert.True(t, res.Coin2Amount.GreaterThan(decimal.NewFromInt(9)))
	assert.True(t, res.Coin2Amount.LessThan(decimal.NewFromInt(11)))
}
