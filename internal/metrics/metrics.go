package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and records
// nothing, which keeps services usable without a registry.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	SalesCreated        *prometheus.CounterVec
	PerOrderTransitions *prometheus.CounterVec
	StockConflicts      *prometheus.CounterVec
	StockTransfers      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SalesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sales_created_total",
			Help: "Finalized sales by source (pos, per_order).",
		}, []string{"source"}),
		PerOrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_per_order_transitions_total",
			Help: "Per-order state transitions by target state.",
		}, []string{"to"}),
		StockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_stock_conflicts_total",
			Help: "Rejected stock or IMEI allocations.",
		}, []string{"reason"}),
		StockTransfers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_stock_transfers_total",
			Help: "Committed inter-branch transfers.",
		}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.SalesCreated,
		m.PerOrderTransitions, m.StockConflicts, m.StockTransfers)
	return m
}

func (m *Metrics) SaleCreated(source string) {
	if m != nil {
		m.SalesCreated.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) PerOrderTransition(to string) {
	if m != nil {
		m.PerOrderTransitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) StockConflict(reason string) {
	if m != nil {
		m.StockConflicts.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) TransferCommitted() {
	if m != nil {
		m.StockTransfers.Inc()
	}
}
