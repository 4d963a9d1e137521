// Package metrics exposes the Prometheus instruments the engine updates
// while processing ticks:
//
//   - trademaker_ticks_total                      – ticks consumed
//   - trademaker_opportunities_total{kind}        – detections (open|close)
//   - trademaker_orders_total{venue,side}         – simulator orders placed
//   - trademaker_realized_pnl_usd                 – cumulative realized PnL (gauge)
//   - trademaker_process_errors_total{kind}       – swallowed per-tick failures
//
// Registered in init() and served by the HTTP handler started in main at
// /metrics (Prometheus text exposition format).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trademaker_ticks_total",
			Help: "Ticks consumed from the broker",
		},
	)

	mtxOpportunities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trademaker_opportunities_total",
			Help: "Opportunities detected",
		},
		[]string{"kind"}, // open|close
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trademaker_orders_total",
			Help: "Simulator orders placed",
		},
		[]string{"venue", "side"},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trademaker_realized_pnl_usd",
			Help: "Cumulative realized PnL across closed pairs",
		},
	)

	mtxProcessErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trademaker_process_errors_total",
			Help: "Per-tick failures that were logged and swallowed",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(mtxTicks, mtxOpportunities, mtxOrders, mtxRealizedPnL, mtxProcessErrors)
}

// Collector adapts the registered instruments to the processor's Observer
// hook.
type Collector struct{}

func (Collector) TickProcessed() { mtxTicks.Inc() }
func (Collector) Opportunity(kind string) { mtxOpportunities.WithLabelValues(kind).Inc() }
func (Collector) OrderPlaced(venue, side string) {
	mtxOrders.WithLabelValues(venue, side).Inc()
}
func (Collector) PairClosed(pnl float64) { mtxRealizedPnL.Add(pnl) }
func (Collector) ProcessError(kind string) { mtxProcessErrors.WithLabelValues(kind).Inc() }

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
