// Package engine wires the Scheduler to the Ladder Builder for one
// market: one Engine per (pair, exchange) pair, run under a single
// errgroup goroutine by the entrypoint.
package engine

import (
	"context"
	"time"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/ladder/builder"
	"ladderbot/internal/ladder/scheduler"
	"ladderbot/pkg/telemetry"
)

// Engine owns the Scheduler driving a single market's Builder.
type Engine struct {
	logger core.ILogger
	pair   string
	build  *builder.Builder
	sched  *scheduler.Scheduler
}

// New builds an Engine for one market. isActive is queried on every
// tick to decide between the active jitter window and the inactive poll
// interval.
func New(logger core.ILogger, pair string, b *builder.Builder, adapter exchange.Adapter, cfg scheduler.Config, isActive scheduler.ActiveChecker) *Engine {
	e := &Engine{
		logger: logger.WithField("component", "engine").WithField("pair", pair),
		pair:   pair,
		build:  b,
	}
	e.sched = scheduler.New(logger, adapter, cfg, isActive, e.runIteration)
	return e
}

// Run blocks, driving the market's Scheduler until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("engine starting", "pair", e.pair)
	e.sched.Run(ctx)
}

func (e *Engine) runIteration(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("iteration panicked", "pair", e.pair, "panic", r)
		}
	}()

	metrics := telemetry.GetGlobalMetrics()
	start := time.Now()

	result, err := e.build.RunIteration(ctx)

	metrics.IncIterations(ctx, e.pair)
	metrics.RecordIterationDuration(ctx, e.pair, float64(time.Since(start).Milliseconds()))

	if err != nil {
		e.logger.Error("iteration failed", "pair", e.pair, "error", err)
		return
	}
	if result.Aborted {
		e.logger.Warn("iteration aborted", "pair", e.pair, "reason", result.AbortReason)
		return
	}
	if result.ReInitiated {
		e.logger.Info("ladder reinitialized", "pair", e.pair)
		return
	}

	metrics.AddOrdersPlaced(ctx, e.pair, result.Placed)
	metrics.AddOrdersCancelled(ctx, e.pair, result.Cancelled)
	metrics.AddFillsDetected(ctx, e.pair, result.FillsDetected)
	metrics.SetOrdersOpen(e.pair, int64(result.OrdersOpen))
	metrics.SetMidPrice(e.pair, result.MidPrice.InexactFloat64())

	e.logger.Debug("iteration complete", "pair", e.pair, "placed", result.Placed, "cancelled", result.Cancelled, "not_placed", result.NotPlaced, "mid_price", result.MidPrice)
}
