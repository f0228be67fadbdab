package metrics

import "github.com/prometheus/client_golang/prometheus"

// StockMetrics exports counters for ledger writes and gauges for stock health.
type StockMetrics struct {
	adjustments *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	autoBlocked prometheus.Counter
	lowStock    prometheus.Gauge
	outOfStock  prometheus.Gauge
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "stock_adjustments_total",
		Help:      "Ledger rows written, by adjustment type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "stock_rejections_total",
		Help:      "Stock operations rejected, by error code.",
	}, []string{"code"})
	autoBlocked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "auto_blocked_total",
		Help:      "Menu items made unavailable because stock ran out.",
	})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "low_stock_items",
		Help:      "Tracked items at or below their low stock alert.",
	})
	outOfStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "out_of_stock_items",
		Help:      "Tracked items with zero stock.",
	})
	reg.MustRegister(adjustments, rejections, autoBlocked, lowStock, outOfStock)
	return &StockMetrics{
		adjustments: adjustments,
		rejections:  rejections,
		autoBlocked: autoBlocked,
		lowStock:    lowStock,
		outOfStock:  outOfStock,
	}
}

func (m *StockMetrics) IncAdjustment(adjustmentType string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(adjustmentType)).Inc()
}

func (m *StockMetrics) IncRejection(code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *StockMetrics) IncAutoBlocked() {
	if m == nil || m.autoBlocked == nil {
		return
	}
	m.autoBlocked.Inc()
}

// SetStockHealth publishes the latest low and out-of-stock counts.
func (m *StockMetrics) SetStockHealth(lowStock, outOfStock int) {
	if m == nil || m.lowStock == nil || m.outOfStock == nil {
		return
	}
	m.lowStock.Set(float64(lowStock))
	m.outOfStock.Set(float64(outOfStock))
}
