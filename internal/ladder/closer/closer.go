// Package closer implements idempotent bulk cancellation of ladder
// orders (spec §4.5): orders flagged "To be removed" or sitting at an
// out-of-range index, plus the one-shot full-ladder reset triggered by
// ladderReInit.
package closer

import (
	"context"
	"sync"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/ladder/model"
	"ladderbot/pkg/concurrency"
)

// Closer cancels orders on the exchange and transitions them to Removed
// on success, leaving failures in the working set so the Builder can
// observe residue and abort the iteration cleanly.
type Closer struct {
	logger  core.ILogger
	adapter exchange.Adapter
	pool    *concurrency.WorkerPool
}

func New(logger core.ILogger, adapter exchange.Adapter, pool *concurrency.WorkerPool) *Closer {
	return &Closer{
		logger:  logger.WithField("component", "closer"),
		adapter: adapter,
		pool:    pool,
	}
}

// Result reports what happened to each candidate order.
type Result struct {
	Cancelled []*model.Order
	Failed    []*model.Order
}

// Close cancels every order in orders that qualifies for removal:
// forceAll (the ladderReInit path) cancels regardless of state; otherwise
// only "To be removed" orders and those with an out-of-range ladder index
// qualify. Cancellation is idempotent: an order already Removed or
// Cancelled is skipped without an exchange call.
func (c *Closer) Close(ctx context.Context, pair string, n int, orders []*model.Order, forceAll bool) Result {
	var mu sync.Mutex
	result := Result{}

	var wg sync.WaitGroup
	for _, order := range orders {
		order := order

		if order.State == model.StateRemoved || order.State == model.StateCancelled {
			continue
		}

		qualifies := forceAll || order.State == model.StateToBeRemoved || !order.InRange(n)
		if !qualifies {
			continue
		}

		wg.Add(1)
		submitErr := c.pool.Submit(func() {
			defer wg.Done()
			c.cancelOne(ctx, pair, order, &mu, &result)
		})
		if submitErr != nil {
			wg.Done()
			c.cancelOne(ctx, pair, order, &mu, &result)
		}
	}
	wg.Wait()

	return result
}

// ReInit implements the one-shot ladderReInit path (spec §6): cancel
// every live ladder order for the pair regardless of state. Callers
// clear the reinit flag only when Result.Failed is empty; otherwise the
// flag stays set so the next iteration retries the residue.
func (c *Closer) ReInit(ctx context.Context, pair string, orders []*model.Order) Result {
	return c.Close(ctx, pair, 0, orders, true)
}

func (c *Closer) cancelOne(ctx context.Context, pair string, order *model.Order, mu *sync.Mutex, result *Result) {
	if order.IsVirtual || order.OrderID == "" {
		// Never reached the exchange; drop it locally.
		order.MarkProcessed()
		order.Transition(model.StateRemoved, "")
		mu.Lock()
		result.Cancelled = append(result.Cancelled, order)
		mu.Unlock()
		return
	}

	ok, err := c.adapter.CancelOrder(ctx, order.OrderID, exchange.Side(order.Side), pair)
	mu.Lock()
	defer mu.Unlock()

	if err != nil || !ok {
		c.logger.Warn("cancel failed, order remains in working set", "order_id", order.OrderID, "error", err)
		result.Failed = append(result.Failed, order)
		return
	}

	order.MarkProcessed()
	order.Transition(model.StateRemoved, "")
	result.Cancelled = append(result.Cancelled, order)
}
