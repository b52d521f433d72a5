// Package builder implements the Ladder Builder (spec §4.4): per-side
// placement walk, index shifting and mid-price update, tying the
// Reconciler, Pricing & Sizing, Balance Guard and Closer together into
// one iteration.
package builder

import (
	"context"
	"fmt"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/journal"
	"ladderbot/internal/ladder/closer"
	"ladderbot/internal/ladder/guard"
	"ladderbot/internal/ladder/model"
	"ladderbot/internal/ladder/pricing"
	"ladderbot/internal/ladder/reconcile"
	"ladderbot/pkg/tradingutils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParamStore is the runtime-mutable slice of configuration the Builder
// reads and writes every iteration: the shifted mid-price and the
// one-shot reinit flag.
type ParamStore interface {
	MidPrice() decimal.Decimal
	SetMidPrice(mid decimal.Decimal, midType string)
	ReInit() bool
	ClearReInit()
}

// Params holds one market's static ladder configuration.
type Params struct {
	Pair          string
	Exchange      string
	Coin1         string // base asset code
	Coin2         string // quote asset code
	N             int
	StepPercent   float64
	AmountCoin    string // "base" or "quote"
	NominalAmount decimal.Decimal
	AmountJitter  float64
}

// Builder runs one ladder maintenance iteration.
type Builder struct {
	logger     core.ILogger
	adapter    exchange.Adapter
	journal    journal.Journal
	reconciler *reconcile.Reconciler
	closer     *closer.Closer
	guard      *guard.Guard
	store      ParamStore
	params     Params
}

func New(logger core.ILogger, adapter exchange.Adapter, j journal.Journal, r *reconcile.Reconciler, c *closer.Closer, g *guard.Guard, store ParamStore, params Params) *Builder {
	return &Builder{
		logger:     logger.WithField("component", "ladder_builder"),
		adapter:    adapter,
		journal:    j,
		reconciler: r,
		closer:     c,
		guard:      g,
		store:      store,
		params:     params,
	}
}

// Result summarizes what one RunIteration call did.
type Result struct {
	Placed        int
	Cancelled     int
	NotPlaced     int
	FillsDetected int
	OrdersOpen    int
	MidPrice      decimal.Decimal
	ReInitiated   bool
	Aborted       bool
	AbortReason   string
}

func boolPtr(b bool) *bool { return &b }

func isReplaceable(s model.State) bool {
	switch s {
	case model.StateUndefined, model.StateNotPlaced, model.StateCancelled, model.StateMissed:
		return true
	}
	return false
}

func (b *Builder) liveQuery(ctx context.Context) ([]*model.Order, error) {
	return b.journal.Query(ctx, journal.Query{
		Purpose:   "ladder",
		Pair:      b.params.Pair,
		Exchange:  b.params.Exchange,
		Processed: boolPtr(false),
	})
}

// RunIteration executes one full pass: reinit-or-purge, reconcile,
// shift, place, re-price.
func (b *Builder) RunIteration(ctx context.Context) (Result, error) {
	result := Result{MidPrice: b.store.MidPrice()}

	if b.store.ReInit() {
		return b.runReInit(ctx, result)
	}

	live, err := b.liveQuery(ctx)
	if err != nil {
		return result, fmt.Errorf("query journal: %w", err)
	}

	closeResult := b.closer.Close(ctx, b.params.Pair, b.params.N, live, false)
	for _, o := range closeResult.Cancelled {
		if err := b.journal.Update(ctx, o, true); err != nil {
			b.logger.Warn("failed to persist cancelled order", "record_key", o.RecordKey, "error", err)
		}
	}
	result.Cancelled = len(closeResult.Cancelled)

	if len(closeResult.Failed) > 0 {
		result.Aborted = true
		result.AbortReason = "closer left residue: slots not safe to rebuild"
		b.logger.Warn("aborting iteration, closer residue remains", "pair", b.params.Pair, "count", len(closeResult.Failed))
		return result, nil
	}

	live, err = b.liveQuery(ctx)
	if err != nil {
		return result, fmt.Errorf("requery journal after purge: %w", err)
	}

	exOrders, err := b.adapter.GetOpenOrders(ctx, b.params.Pair)
	if err != nil {
		return result, fmt.Errorf("get open orders: %w", err)
	}
	exMap := make(map[string]exchange.Order, len(exOrders))
	for _, o := range exOrders {
		exMap[o.OrderID] = o
	}

	bySide := map[model.Side][]*model.Order{
		model.SideBuy:  bySideFilter(live, model.SideBuy),
		model.SideSell: bySideFilter(live, model.SideSell),
	}

	maxFilled := map[model.Side]int{model.SideBuy: -1, model.SideSell: -1}
	filledPrices := map[model.Side][]decimal.Decimal{}

	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		rres := b.reconciler.Reconcile(ctx, b.params.Pair, side, b.params.N, bySide[side], exMap)
		bySide[side] = rres.Orders
		maxFilled[side] = rres.MaxFilledIndex
		filledPrices[side] = rres.FilledPrices

		for _, o := range rres.Orders {
			if err := b.journal.Update(ctx, o, false); err != nil {
				b.logger.Warn("failed to persist reconciled order", "record_key", o.RecordKey, "error", err)
			}
		}

		for _, cr := range rres.CrossRemovals {
			crCopy := cr
			opp := side.Opposite()
			target := findByIndex(bySide[opp], crCopy.Index)
			if target == nil {
				b.logger.Warn("cross removal target not found", "pair", b.params.Pair, "side", opp, "index", crCopy.Index)
				continue
			}
			target.CrossOrder = &crCopy
			target.Transition(model.StateToBeRemoved, "")
			if err := b.journal.Update(ctx, target, true); err != nil {
				b.logger.Warn("failed to persist cross removal", "record_key", target.RecordKey, "error", err)
			}
		}
	}

	marketInfo, err := b.adapter.MarketInfo(ctx, b.params.Pair)
	if err != nil {
		return result, fmt.Errorf("market info: %w", err)
	}

	// Renumber surviving orders before placement walks the index space, so
	// a just-filled near rung is treated as a vacated slot at its new,
	// post-shift index rather than re-duplicated at its old one.
	survivors := make([]*model.Order, 0, len(bySide[model.SideBuy])+len(bySide[model.SideSell]))
	survivors = append(survivors, liveOnly(bySide[model.SideBuy])...)
	survivors = append(survivors, liveOnly(bySide[model.SideSell])...)
	b.shiftIndices(ctx, survivors, maxFilled)

	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		placed, notPlaced := b.placeSide(ctx, side, liveOnly(bySide[side]), marketInfo)
		result.Placed += placed
		result.NotPlaced += notPlaced
	}

	result.FillsDetected = len(filledPrices[model.SideBuy]) + len(filledPrices[model.SideSell])

	newMid := b.computeMidPrice(result.MidPrice, maxFilled, filledPrices)
	if !newMid.Equal(result.MidPrice) {
		b.store.SetMidPrice(newMid, "Shifted")
		result.MidPrice = newMid
	}

	if final, err := b.liveQuery(ctx); err == nil {
		result.OrdersOpen = len(final)
	} else {
		b.logger.Warn("failed to requery journal for open-order count", "pair", b.params.Pair, "error", err)
	}

	return result, nil
}

func (b *Builder) runReInit(ctx context.Context, result Result) (Result, error) {
	live, err := b.liveQuery(ctx)
	if err != nil {
		return result, fmt.Errorf("query journal: %w", err)
	}

	cr := b.closer.ReInit(ctx, b.params.Pair, live)
	for _, o := range cr.Cancelled {
		if err := b.journal.Update(ctx, o, true); err != nil {
			b.logger.Warn("failed to persist reinit cancellation", "record_key", o.RecordKey, "error", err)
		}
	}
	result.Cancelled = len(cr.Cancelled)

	if len(cr.Failed) > 0 {
		result.Aborted = true
		result.AbortReason = "ladderReInit: cancellation residue remains, flag stays set"
		return result, nil
	}

	b.store.ClearReInit()
	result.ReInitiated = true
	return result, nil
}

// placeSide walks one side's indices 0..N-1, placing into any absent or
// re-placeable slot, and returns (placed, notPlaced) counts.
func (b *Builder) placeSide(ctx context.Context, side model.Side, orders []*model.Order, marketInfo exchange.MarketInfo) (placed int, notPlaced int) {
	var previousOrder *model.Order

	for index := 0; index < b.params.N; index++ {
		existing := findByIndex(orders, index)

		if existing != nil && !isReplaceable(existing.State) {
			previousOrder = existing
			continue
		}

		var price decimal.Decimal
		if previousOrder != nil {
			price = pricing.NextPrice(side, previousOrder.Price, b.params.StepPercent)
		} else {
			price = pricing.FirstPrice(side, b.store.MidPrice(), b.params.StepPercent)
		}

		price = tradingutils.RoundPrice(price, marketInfo.Coin2Decimals)
		size := pricing.SizeForIndex(b.params.AmountCoin, b.params.NominalAmount, price, b.params.AmountJitter)
		size.Coin1Amount = tradingutils.RoundQuantity(size.Coin1Amount, marketInfo.Coin1Decimals)

		recordKey := uuid.NewString()
		newOrder := &model.Order{
			RecordKey:          recordKey,
			OrderID:            "virtual-" + recordKey,
			Purpose:            "ladder",
			Pair:               b.params.Pair,
			Exchange:           b.params.Exchange,
			Side:               side,
			LadderIndex:        index,
			Price:              price,
			Coin1Amount:        size.Coin1Amount,
			Coin2Amount:        size.Coin2Amount,
			Coin1AmountInitial: size.Coin1Amount,
			State:              model.StateUndefined,
			IsVirtual:          true,
		}

		if size.Coin1Amount.LessThan(marketInfo.Coin1MinAmount) {
			newOrder.Transition(model.StateNotPlaced, "Minimal order amount is not met")
			b.persistAndReplace(ctx, newOrder, existing)
			previousOrder = newOrder
			notPlaced++
			continue
		}

		check := b.guard.Check(ctx, b.params.Pair, b.params.Coin1, b.params.Coin2, side, index, b.params.N, size.Coin1Amount, size.Coin2Amount)
		if !check.OK {
			newOrder.Transition(model.StateNotPlaced, check.Message)
			b.persistAndReplace(ctx, newOrder, existing)
			previousOrder = newOrder
			notPlaced++
			continue
		}

		var quoteAmount decimal.Decimal
		if b.params.AmountCoin == "quote" {
			quoteAmount = size.Coin2Amount
		}

		placeResult, err := b.adapter.PlaceOrder(ctx, exchange.Side(side), b.params.Pair, price, size.Coin1Amount, quoteAmount)
		if err != nil || !placeResult.Success || placeResult.OrderID == "" {
			b.logger.Warn("place order failed", "pair", b.params.Pair, "side", side, "index", index, "error", err)
			newOrder.Transition(model.StateNotPlaced, "No order id returned")
			b.persistAndReplace(ctx, newOrder, existing)
			previousOrder = newOrder
			notPlaced++
			continue
		}

		newOrder.LadderPreviousOrderID = newOrder.OrderID
		newOrder.OrderID = placeResult.OrderID
		newOrder.IsVirtual = false
		newOrder.Transition(model.StateOpen, "")
		b.persistAndReplace(ctx, newOrder, existing)
		previousOrder = newOrder
		placed++
	}

	return placed, notPlaced
}

// persistAndReplace saves newOrder and, when a prior record occupied the
// slot, marks it processed/closed with provenance to the new record.
func (b *Builder) persistAndReplace(ctx context.Context, newOrder *model.Order, prior *model.Order) {
	if prior != nil {
		prior.MarkProcessed()
		prior.IsClosed = true
		prior.LadderReplacedByOrderID = newOrder.OrderID
		if err := b.journal.Update(ctx, prior, true); err != nil {
			b.logger.Warn("failed to persist replaced order", "record_key", prior.RecordKey, "error", err)
		}
	}
	if err := b.journal.Persist(ctx, newOrder); err != nil {
		b.logger.Warn("failed to persist new order", "record_key", newOrder.RecordKey, "error", err)
	}
}

// shiftIndices renumbers every surviving live order once both sides have
// been reconciled, before either side's placement walk runs. An order's
// own-side fill count shrinks its index toward zero; the opposite side's
// fill count grows it toward N.
// Applying both contributions in one pass is equivalent to the "shift
// applied twice, once per side" description: when both sides fill by
// the same count the two contributions cancel, which is exactly the
// zero-net-shift behavior a symmetric fill requires.
func (b *Builder) shiftIndices(ctx context.Context, live []*model.Order, maxFilled map[model.Side]int) {
	for _, o := range live {
		shrink := 0
		if m := maxFilled[o.Side]; m >= 0 {
			shrink = m + 1
		}
		grow := 0
		if m := maxFilled[o.Side.Opposite()]; m >= 0 {
			grow = m + 1
		}
		if shrink == 0 && grow == 0 {
			continue
		}
		o.LadderPreviousIndex = o.LadderIndex
		o.LadderIndex = o.LadderIndex - shrink + grow
		if err := b.journal.Update(ctx, o, true); err != nil {
			b.logger.Warn("failed to persist shifted index", "record_key", o.RecordKey, "error", err)
		}
	}
}

// computeMidPrice implements §4.4's branching mid-price update.
// filledPrices[side] holds fill prices in observation order, and d and
// maxFilled index directly into those slices. When a side's fills are
// contiguous from index 0, a fill count m and an observation-order index
// coincide. The Reconciler records any exchange-reported fill without
// requiring the lower rungs to be filled too; when fills are not
// contiguous the index can fall past the end of the slice, indexOrZero
// yields zero, and the prior mid-price is kept.
func (b *Builder) computeMidPrice(prior decimal.Decimal, maxFilled map[model.Side]int, filledPrices map[model.Side][]decimal.Decimal) decimal.Decimal {
	buyFilled := maxFilled[model.SideBuy] >= 0
	sellFilled := maxFilled[model.SideSell] >= 0
	d := maxFilled[model.SideBuy] - maxFilled[model.SideSell]

	var candidate decimal.Decimal
	switch {
	case buyFilled && sellFilled && d > 0:
		candidate = indexOrZero(filledPrices[model.SideBuy], d-1)
	case buyFilled && sellFilled && d < 0:
		candidate = indexOrZero(filledPrices[model.SideSell], -d-1)
	case buyFilled && !sellFilled:
		candidate = indexOrZero(filledPrices[model.SideBuy], maxFilled[model.SideBuy])
	case sellFilled && !buyFilled:
		candidate = indexOrZero(filledPrices[model.SideSell], maxFilled[model.SideSell])
	default:
		// d == 0: neither side filled, or both filled the same count.
		return prior
	}

	if !candidate.IsPositive() {
		b.logger.Warn("computed mid-price is non-positive, reverting to prior", "pair", b.params.Pair, "computed", candidate)
		return prior
	}
	return candidate
}

func indexOrZero(prices []decimal.Decimal, idx int) decimal.Decimal {
	if idx < 0 || idx >= len(prices) {
		return decimal.Zero
	}
	return prices[idx]
}

// liveOnly drops processed records so the placement walk treats a
// just-filled or just-cancelled slot as absent rather than occupied.
func liveOnly(orders []*model.Order) []*model.Order {
	out := make([]*model.Order, 0, len(orders))
	for _, o := range orders {
		if !o.IsProcessed {
			out = append(out, o)
		}
	}
	return out
}

func bySideFilter(orders []*model.Order, side model.Side) []*model.Order {
	out := make([]*model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Side == side {
			out = append(out, o)
		}
	}
	return out
}

func findByIndex(orders []*model.Order, index int) *model.Order {
	for _, o := range orders {
		if o.LadderIndex == index {
			return o
		}
	}
	return nil
}
