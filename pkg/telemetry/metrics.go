package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricIterationsTotal      = "ladderbot_iterations_total"
	MetricIterationDuration    = "ladderbot_iteration_duration_ms"
	MetricOrdersPlacedTotal    = "ladderbot_orders_placed_total"
	MetricOrdersCancelledTotal = "ladderbot_orders_cancelled_total"
	MetricFillsDetectedTotal   = "ladderbot_fills_detected_total"
	MetricOrdersOpen           = "ladderbot_orders_open"
	MetricBalanceShortfalls    = "ladderbot_balance_shortfalls_total"
	MetricLatencyExchange      = "ladderbot_latency_exchange_ms"
	MetricMidPrice             = "ladderbot_mid_price"
)

// MetricsHolder holds the initialized instruments for one ladder.
// All counters are labeled by market symbol so a single process can, in
// principle, run more than one ladder side by side.
type MetricsHolder struct {
	IterationsTotal      metric.Int64Counter
	IterationDuration    metric.Float64Histogram
	OrdersPlacedTotal    metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	FillsDetectedTotal   metric.Int64Counter
	BalanceShortfalls    metric.Int64Counter
	LatencyExchange      metric.Float64Histogram
	OrdersOpen           metric.Int64ObservableGauge
	MidPrice             metric.Float64ObservableGauge

	mu             sync.RWMutex
	ordersOpenMap  map[string]int64
	midPriceMap    map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			ordersOpenMap: make(map[string]int64),
			midPriceMap:   make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitMetrics registers every instrument against the given meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.IterationsTotal, err = meter.Int64Counter(MetricIterationsTotal, metric.WithDescription("Total scheduler iterations run"))
	if err != nil {
		return err
	}

	m.IterationDuration, err = meter.Float64Histogram(MetricIterationDuration, metric.WithDescription("Wall time of a single reconcile+build iteration"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total ladder orders placed on the exchange"))
	if err != nil {
		return err
	}

	m.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal, metric.WithDescription("Total ladder orders cancelled"))
	if err != nil {
		return err
	}

	m.FillsDetectedTotal, err = meter.Int64Counter(MetricFillsDetectedTotal, metric.WithDescription("Total fills observed during reconciliation"))
	if err != nil {
		return err
	}

	m.BalanceShortfalls, err = meter.Int64Counter(MetricBalanceShortfalls, metric.WithDescription("Total balance guard rejections"))
	if err != nil {
		return err
	}

	m.LatencyExchange, err = meter.Float64Histogram(MetricLatencyExchange, metric.WithDescription("Latency of exchange API calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.OrdersOpen, err = meter.Int64ObservableGauge(MetricOrdersOpen, metric.WithDescription("Number of currently open ladder orders"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.ordersOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.MidPrice, err = meter.Float64ObservableGauge(MetricMidPrice, metric.WithDescription("Mid price used for the most recent iteration"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.midPriceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// IncIterations records one completed scheduler iteration.
func (m *MetricsHolder) IncIterations(ctx context.Context, pair string) {
	if m.IterationsTotal == nil {
		return
	}
	m.IterationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

// RecordIterationDuration records one iteration's wall time in milliseconds.
func (m *MetricsHolder) RecordIterationDuration(ctx context.Context, pair string, ms float64) {
	if m.IterationDuration == nil {
		return
	}
	m.IterationDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("pair", pair)))
}

// AddOrdersPlaced adds n newly placed orders to the running total.
func (m *MetricsHolder) AddOrdersPlaced(ctx context.Context, pair string, n int) {
	if n <= 0 || m.OrdersPlacedTotal == nil {
		return
	}
	m.OrdersPlacedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("pair", pair)))
}

// AddOrdersCancelled adds n cancelled orders to the running total.
func (m *MetricsHolder) AddOrdersCancelled(ctx context.Context, pair string, n int) {
	if n <= 0 || m.OrdersCancelledTotal == nil {
		return
	}
	m.OrdersCancelledTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("pair", pair)))
}

// AddFillsDetected adds n fills observed during reconciliation to the
// running total.
func (m *MetricsHolder) AddFillsDetected(ctx context.Context, pair string, n int) {
	if n <= 0 || m.FillsDetectedTotal == nil {
		return
	}
	m.FillsDetectedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("pair", pair)))
}

// IncBalanceShortfalls records one Balance Guard rejection.
func (m *MetricsHolder) IncBalanceShortfalls(ctx context.Context, pair string, side string) {
	if m.BalanceShortfalls == nil {
		return
	}
	m.BalanceShortfalls.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair), attribute.String("side", side)))
}

// RecordExchangeLatency records one adapter HTTP round trip's duration in
// milliseconds.
func (m *MetricsHolder) RecordExchangeLatency(ctx context.Context, exchangeName string, ms float64) {
	if m.LatencyExchange == nil {
		return
	}
	m.LatencyExchange.Record(ctx, ms, metric.WithAttributes(attribute.String("exchange", exchangeName)))
}

func (m *MetricsHolder) SetOrdersOpen(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersOpenMap[symbol] = count
}

func (m *MetricsHolder) SetMidPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.midPriceMap[symbol] = price
}

func (m *MetricsHolder) GetOrdersOpen() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64, len(m.ordersOpenMap))
	for k, v := range m.ordersOpenMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetMidPrice() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64, len(m.midPriceMap))
	for k, v := range m.midPriceMap {
		res[k] = v
	}
	return res
}
