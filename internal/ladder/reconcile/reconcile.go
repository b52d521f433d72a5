// Package reconcile implements the per-order state classifier (spec
// §4.3): for each persisted ladder record, determine its actual exchange
// status, confirm or demote ambiguous fills, and surface cross-side
// mirror removals.
package reconcile

import (
	"context"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/ladder/model"

	"github.com/shopspring/decimal"
)

// Result is one side's reconciliation outcome for a single iteration.
type Result struct {
	// Orders is every record passed in for this side, in the order given
	// (ascending LadderIndex), including any marked processed during
	// classification.
	Orders []*model.Order

	// MaxFilledIndex is maxFilledOrderIndex[side]: -1 if no fill was
	// confirmed this iteration, otherwise the highest ladder index
	// confirmed filled.
	MaxFilledIndex int

	// FilledPrices is filledOrderPrices[side], indexed by the order in
	// which fills were observed during this walk (zero-indexed within
	// the fills themselves, NOT by ladder index — per the indexing
	// convention resolved for the mid-price shift formula, see
	// builder.computeMidPrice).
	FilledPrices []decimal.Decimal

	// CrossRemovals lists the opposite-side index that each confirmed
	// fill retires, with provenance for the target order's
	// ladderCrossOrder* fields.
	CrossRemovals []model.CrossOrderRef
}

// Reconciler classifies each side's journal records against the
// exchange's reported order state.
type Reconciler struct {
	logger                    core.ILogger
	adapter                   exchange.Adapter
	previousFilledOrderStates map[model.State]bool
}

// New builds a Reconciler. previousFilledStates is the configurable
// whitelist from §9's design note; nil/empty falls back to
// model.DefaultPreviousFilledOrderStates.
func New(logger core.ILogger, adapter exchange.Adapter, previousFilledStates []model.State) *Reconciler {
	if len(previousFilledStates) == 0 {
		previousFilledStates = model.DefaultPreviousFilledOrderStates
	}
	set := make(map[model.State]bool, len(previousFilledStates))
	for _, s := range previousFilledStates {
		set[s] = true
	}
	return &Reconciler{
		logger:                    logger.WithField("component", "reconciler"),
		adapter:                   adapter,
		previousFilledOrderStates: set,
	}
}

// Reconcile walks orders (already sorted ascending by LadderIndex for
// this side) and classifies each one. exchangeOrders is the venue's
// current open-orders snapshot for the pair, used both for direct detail
// lookup fallback and to tell whether an order the journal thinks is
// live has disappeared from the exchange (i.e. was filled or cancelled
// out of band).
func (r *Reconciler) Reconcile(ctx context.Context, pair string, side model.Side, n int, orders []*model.Order, exchangeOrders map[string]exchange.Order) Result {
	result := Result{
		Orders:         make([]*model.Order, 0, len(orders)),
		MaxFilledIndex: -1,
	}

	var previousOrder *model.Order
	var previousInitialState model.State

	for _, order := range orders {
		initialState := order.State

		r.classify(ctx, pair, order, exchangeOrders, previousOrder, previousInitialState)

		if order.State == model.StateFilled && initialState != model.StateFilled {
			if order.LadderIndex > result.MaxFilledIndex {
				result.MaxFilledIndex = order.LadderIndex
			}
			result.FilledPrices = append(result.FilledPrices, order.Price)

			crossIndex := n - 1 - order.LadderIndex
			result.CrossRemovals = append(result.CrossRemovals, model.CrossOrderRef{
				OrderID: order.OrderID,
				Index:   crossIndex,
				Type:    side,
				Price:   order.Price,
			})
		}

		result.Orders = append(result.Orders, order)
		previousOrder = order
		previousInitialState = initialState
	}

	return result
}

// classify applies reconciliation steps 1-2 to a single order, mutating
// its State/PreviousState in place via model.Order.Transition.
func (r *Reconciler) classify(ctx context.Context, pair string, order *model.Order, exchangeOrders map[string]exchange.Order, previousOrder *model.Order, previousInitialState model.State) {
	if order.IsVirtual || order.OrderID == "" {
		// Nothing placed yet; the Builder owns (re-)placement, not the
		// Reconciler.
		return
	}

	if order.State == model.StateToBeRemoved || order.State == model.StateRemoved || order.State == model.StateCancelled {
		// The only legal transition out of "to be removed" is the Closer
		// cancelling it into Removed; the exchange still reporting it open
		// must not resurrect it into Open.
		return
	}

	exOrder, found := exchangeOrders[order.OrderID]
	if r.adapter != nil && r.adapter.Features().SupportsOrderDetail {
		if detail, ok, err := r.adapter.GetOrderDetails(ctx, order.OrderID, pair); err == nil && ok {
			exOrder, found = detail, true
		}
	}

	if order.State == model.StateFilled {
		// Step 2: confirm or demote an already-locally-filled order.
		if found && (exOrder.Status == exchange.StatusFilled || exOrder.Status == exchange.StatusPartFilled) {
			if exOrder.Status == exchange.StatusFilled {
				order.MarkProcessed()
			}
			return
		}

		if r.previousOrderConfirmsFill(previousOrder, previousInitialState) {
			return
		}

		// Neither the API nor the heuristic confirms: API truth wins
		// when available but reports "new"; otherwise demote safely.
		r.logger.Warn("demoting ambiguous fill to Missed", "pair", pair, "order_id", order.OrderID, "index", order.LadderIndex)
		order.Transition(model.StateMissed, "")
		return
	}

	if !found {
		// Disappeared from the exchange without a prior local fill
		// record: treat as cancelled so the Builder re-places it.
		if order.State == model.StateOpen || order.State == model.StatePartlyFilled {
			order.Transition(model.StateCancelled, "")
		}
		return
	}

	switch exOrder.Status {
	case exchange.StatusFilled:
		order.Transition(model.StateFilled, "")
		order.MarkProcessed()
	case exchange.StatusPartFilled:
		if order.State != model.StatePartlyFilled {
			order.Transition(model.StatePartlyFilled, "")
		}
	case exchange.StatusCancelled:
		order.Transition(model.StateCancelled, "")
	case exchange.StatusNew:
		if order.State != model.StateOpen {
			order.Transition(model.StateOpen, "")
		}
	}
}

// previousOrderConfirmsFill implements the heuristic in §4.3 step 2(b):
// the previous-index same-side order is in a recognized
// "previously-filled" state.
func (r *Reconciler) previousOrderConfirmsFill(previousOrder *model.Order, previousInitialState model.State) bool {
	if previousOrder == nil {
		return false
	}
	return r.previousFilledOrderStates[previousInitialState]
}
