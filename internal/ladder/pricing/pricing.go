// Package pricing computes per-index ladder prices and jittered order
// sizes (spec §4.6).
package pricing

import (
	"math/rand"

	"ladderbot/internal/ladder/model"

	"github.com/shopspring/decimal"
)

// DefaultAmountJitter is d in [1-d, 1+d] when configuration leaves the
// jitter factor unset.
const DefaultAmountJitter = 0.02

// NextPrice computes the next rung's price from the previous rung's
// price and the step, stepping down for buys and up for sells:
// price_{i+1} = price_i * (1 ∓ step).
func NextPrice(side model.Side, previous decimal.Decimal, stepPercent float64) decimal.Decimal {
	step := decimal.NewFromFloat(stepPercent).Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	if side == model.SideBuy {
		return previous.Mul(one.Sub(step))
	}
	return previous.Mul(one.Add(step))
}

// FirstPrice computes index 0's price directly from the mid-price:
// mid * (1 - step) for buys, mid * (1 + step) for sells.
func FirstPrice(side model.Side, mid decimal.Decimal, stepPercent float64) decimal.Decimal {
	return NextPrice(side, mid, stepPercent)
}

// PriceForIndex computes price_index = mid * (1 ∓ step)^(index+1)
// directly, without walking every intermediate rung. Used by tests and
// by any caller that needs a specific rung's price in isolation; the
// Ladder Builder itself derives prices incrementally via NextPrice so
// that a changed mid-price does not retroactively reprice surviving
// rungs.
func PriceForIndex(side model.Side, mid decimal.Decimal, stepPercent float64, index int) decimal.Decimal {
	price := mid
	for i := 0; i <= index; i++ {
		price = NextPrice(side, price, stepPercent)
	}
	return price
}

// SizeResult holds the jittered base/quote amounts for one rung.
type SizeResult struct {
	Coin1Amount decimal.Decimal // base
	Coin2Amount decimal.Decimal // quote
}

// randFloat is overridable so tests can pin the jitter deterministically.
var randFloat = rand.Float64

// SizeForIndex computes the jittered order amount for a rung. amountCoin
// is "base" or "quote" per configuration; nominalAmount is the
// configured ladder_amount; price is the rung's price, used to derive
// the other denomination.
func SizeForIndex(amountCoin string, nominalAmount decimal.Decimal, price decimal.Decimal, jitter float64) SizeResult {
	if jitter <= 0 {
		jitter = DefaultAmountJitter
	}
	factor := 1 - jitter + randFloat()*2*jitter
	jittered := nominalAmount.Mul(decimal.NewFromFloat(factor))

	if amountCoin == "quote" {
		coin2 := jittered
		coin1 := decimal.Zero
		if !price.IsZero() {
			coin1 = coin2.Div(price)
		}
		return SizeResult{Coin1Amount: coin1, Coin2Amount: coin2}
	}

	coin1 := jittered
	coin2 := coin1.Mul(price)
	return SizeResult{Coin1Amount: coin1, Coin2Amount: coin2}
}
