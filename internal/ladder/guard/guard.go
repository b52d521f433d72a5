// Package guard implements the Balance Guard (spec §4.7): a pre-flight
// funds check run before every order placement, with rate-limited
// alerting for shortfalls near the spread.
package guard

import (
	"context"
	"fmt"
	"math"
	"time"

	"ladderbot/internal/alert"
	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/ladder/model"
	"ladderbot/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Check is the {result, message} pair the Builder persists as
// Not placed(<reason>) on a shortfall.
type Check struct {
	OK      bool
	Message string
}

// Guard checks a side's required balance against the adapter's live
// snapshot and rate-limits the alert fired on shortfall.
type Guard struct {
	logger   core.ILogger
	adapter  exchange.Adapter
	notifier Notifier
	limiter  *rate.Limiter
}

// Notifier is the narrow alerting surface the Guard drives; satisfied by
// *alert.AlertManager.
type Notifier interface {
	Alert(ctx context.Context, title, message string, level alert.AlertLevel, fields map[string]string)
}

// New builds a Guard. A nil notifier disables alerting (checks still run
// and still produce Check results; only the side-channel notification is
// skipped).
func New(logger core.ILogger, adapter exchange.Adapter, notifier Notifier) *Guard {
	return &Guard{
		logger:   logger.WithField("component", "balance_guard"),
		adapter:  adapter,
		notifier: notifier,
		// At most once per hour: a burst of 1 replenished over an hour.
		limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
	}
}

// nearSpreadThreshold returns ceil(n * 0.33), the number of rungs nearest
// the spread for which a shortfall is loud rather than merely logged.
func nearSpreadThreshold(n int) int {
	return int(math.Ceil(float64(n) * 0.33))
}

// Check verifies the balance needed to place one rung's order. side,
// ladderIndex and n identify the rung for alert-suppression purposes;
// coin1Amount/coin2Amount are the sizes Pricing & Sizing computed for
// this rung; coin1/coin2 are the asset codes.
func (g *Guard) Check(ctx context.Context, pair string, coin1, coin2 string, side model.Side, ladderIndex, n int, coin1Amount, coin2Amount decimal.Decimal) Check {
	balances, err := g.adapter.GetBalances(ctx, false, "")
	if err != nil {
		g.logger.Warn("balance lookup failed, treating as insufficient", "pair", pair, "error", err)
		telemetry.GetGlobalMetrics().IncBalanceShortfalls(ctx, pair, string(side))
		return Check{OK: false, Message: "Not enough balances"}
	}

	byCode := make(map[string]exchange.Balance, len(balances))
	for _, b := range balances {
		byCode[b.Code] = b
	}

	var ok bool
	switch side {
	case model.SideSell:
		ok = byCode[coin1].Free.GreaterThanOrEqual(coin1Amount)
	case model.SideBuy:
		ok = byCode[coin2].Free.GreaterThanOrEqual(coin2Amount)
	}

	if ok {
		return Check{OK: true}
	}

	message := "Not enough balances"
	telemetry.GetGlobalMetrics().IncBalanceShortfalls(ctx, pair, string(side))
	g.maybeAlert(ctx, pair, side, ladderIndex, n, message)
	return Check{OK: false, Message: message}
}

// maybeAlert fires a rate-limited notification, but only when the
// shortfall sits within the first ceil(N*0.33) rungs from the spread;
// shortfalls further out are logged silently since they don't impede
// trading near the market.
func (g *Guard) maybeAlert(ctx context.Context, pair string, side model.Side, ladderIndex, n int, message string) {
	threshold := nearSpreadThreshold(n)
	if ladderIndex >= threshold {
		g.logger.Debug("balance shortfall on far rung, suppressing alert", "pair", pair, "side", side, "index", ladderIndex)
		return
	}

	g.logger.Warn("balance shortfall near spread", "pair", pair, "side", side, "index", ladderIndex)

	if g.notifier == nil {
		return
	}
	if !g.limiter.Allow() {
		return
	}

	subject := fmt.Sprintf("%s: insufficient balance", pair)
	body := fmt.Sprintf("side=%s index=%d reason=%s", side, ladderIndex, message)
	fields := map[string]string{"pair": pair, "side": string(side), "index": fmt.Sprintf("%d", ladderIndex)}
	g.notifier.Alert(ctx, subject, body, alert.Warning, fields)
}
