// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TradesExecuted   *prometheus.CounterVec
	TradesRejected   *prometheus.CounterVec
	ReserveConflicts prometheus.Counter
	TradeVolumeSol   prometheus.Counter

	// Graduation metrics
	GraduationsCompleted prometheus.Counter
	GraduationChecks     *prometheus.CounterVec
	HandoffFailures      prometheus.Counter

	// Price feed metrics
	PriceFeedRefreshes *prometheus.CounterVec
	PriceFeedStale     prometheus.Gauge

	// Analytics metrics
	CurvePointsRecorded prometheus.Counter
	CurvePointErrors    prometheus.Counter

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	WSConnections       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curve_launchpad"
	}

	return &Metrics{
		// Ledger metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_executed_total",
			Help:      "Total number of committed trades by kind",
		}, []string{"kind"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_rejected_total",
			Help:      "Total number of rejected trades by reason",
		}, []string{"reason"}),
		ReserveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reserve_conflicts_total",
			Help:      "Total number of optimistic reserve update conflicts retried",
		}),
		TradeVolumeSol: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trade_volume_lamports_total",
			Help:      "Cumulative gross SOL volume across all trades in lamports",
		}),

		// Graduation metrics
		GraduationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "completed_total",
			Help:      "Total number of tokens graduated to an external pool",
		}),
		GraduationChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "checks_total",
			Help:      "Total number of graduation checks by outcome",
		}, []string{"outcome"}),
		HandoffFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "handoff_failures_total",
			Help:      "Total number of failed pool handoff attempts",
		}),

		// Price feed metrics
		PriceFeedRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "refreshes_total",
			Help:      "Total number of SOL price refreshes by status",
		}, []string{"status"}),
		PriceFeedStale: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "serving_stale",
			Help:      "1 when the cached SOL price is past its TTL, 0 otherwise",
		}),

		// Analytics metrics
		CurvePointsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "curve_points_recorded_total",
			Help:      "Total number of curve state samples written",
		}),
		CurvePointErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "curve_point_errors_total",
			Help:      "Total number of failed curve state writes",
		}),

		// HTTP metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "ws_connections",
			Help:      "Current number of websocket subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeExecuted increments the committed trade counter and adds the
// trade's gross SOL value to the volume counter.
func RecordTradeExecuted(kind string, grossSol int64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(kind).Inc()
	DefaultMetrics.TradeVolumeSol.Add(float64(grossSol))
}

// RecordTradeRejected increments the rejected trade counter.
func RecordTradeRejected(reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(reason).Inc()
}

// RecordReserveConflict increments the reserve conflict counter.
func RecordReserveConflict() {
	DefaultMetrics.ReserveConflicts.Inc()
}

// RecordGraduationCheck records the outcome of one graduation check.
func RecordGraduationCheck(outcome string) {
	DefaultMetrics.GraduationChecks.WithLabelValues(outcome).Inc()
}

// RecordGraduationCompleted increments the graduation counter.
func RecordGraduationCompleted() {
	DefaultMetrics.GraduationsCompleted.Inc()
}

// RecordHandoffFailure increments the handoff failure counter.
func RecordHandoffFailure() {
	DefaultMetrics.HandoffFailures.Inc()
}

// RecordPriceFeedRefresh records a price feed refresh attempt.
func RecordPriceFeedRefresh(status string) {
	DefaultMetrics.PriceFeedRefreshes.WithLabelValues(status).Inc()
}

// SetPriceFeedStale updates the stale price gauge.
func SetPriceFeedStale(stale bool) {
	if stale {
		DefaultMetrics.PriceFeedStale.Set(1)
	} else {
		DefaultMetrics.PriceFeedStale.Set(0)
	}
}

// RecordCurvePoint records the result of one curve state write.
func RecordCurvePoint(err error) {
	if err != nil {
		DefaultMetrics.CurvePointErrors.Inc()
		return
	}
	DefaultMetrics.CurvePointsRecorded.Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, status).Observe(seconds)
}
