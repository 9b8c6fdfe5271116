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
	// Feed metrics
	TicksProcessed   *prometheus.CounterVec
	TicksOutOfOrder  *prometheus.CounterVec
	FeedReconnects   prometheus.Counter
	LastTickReceived prometheus.Gauge

	// Ladder metrics
	LegsPlaced     *prometheus.CounterVec
	LegsRejected   *prometheus.CounterVec
	OpenLegs       *prometheus.GaugeVec
	LadderFreezes  prometheus.Counter
	SizingFailures *prometheus.CounterVec

	// Cycle metrics
	CyclesStarted  *prometheus.CounterVec
	CyclesClosed   *prometheus.CounterVec
	ActiveCycles   *prometheus.GaugeVec
	CyclePnL       *prometheus.HistogramVec
	CycleDuration  *prometheus.HistogramVec
	PartialExits   *prometheus.CounterVec
	EmergencyExits prometheus.Counter

	// Risk metrics
	DailyPnL        prometheus.Gauge
	PeakEquity      prometheus.Gauge
	CurrentDrawdown prometheus.Gauge
	TradingHalted   prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCycleClosed prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "martingale_lab"
	}

	return &Metrics{
		// Feed metrics
		TicksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks processed by symbol",
		}, []string{"symbol"}),
		TicksOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_out_of_order_total",
			Help:      "Total number of ticks rejected for timestamp regression",
		}, []string{"symbol"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of price feed reconnects",
		}),
		LastTickReceived: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_tick_timestamp",
			Help:      "Unix timestamp of the last tick received",
		}),

		// Ladder metrics
		LegsPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ladder",
			Name:      "legs_placed_total",
			Help:      "Total number of legs filled by variant and direction",
		}, []string{"variant", "direction"}),
		LegsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ladder",
			Name:      "legs_rejected_total",
			Help:      "Total number of leg orders rejected by the broker layer",
		}, []string{"variant"}),
		OpenLegs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ladder",
			Name:      "open_legs",
			Help:      "Current number of open legs by variant and symbol",
		}, []string{"variant", "symbol"}),
		LadderFreezes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ladder",
			Name:      "freezes_total",
			Help:      "Total number of ladders frozen at the leg cap",
		}),
		SizingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ladder",
			Name:      "sizing_failures_total",
			Help:      "Total number of leg intents skipped by sizing errors",
		}, []string{"variant", "reason"}),

		// Cycle metrics
		CyclesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "started_total",
			Help:      "Total number of cycles started by variant",
		}, []string{"variant"}),
		CyclesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "closed_total",
			Help:      "Total number of cycles closed by variant and exit reason",
		}, []string{"variant", "reason"}),
		ActiveCycles: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "active",
			Help:      "Current number of active cycles by variant",
		}, []string{"variant"}),
		CyclePnL: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "realized_pnl",
			Help:      "Realized P&L per closed cycle",
			Buckets:   []float64{-500, -100, -50, -10, 0, 10, 50, 100, 500},
		}, []string{"variant"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle duration from first leg to close in seconds",
			Buckets:   []float64{60, 300, 900, 3600, 14400, 86400},
		}, []string{"variant"}),
		PartialExits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "partial_exits_total",
			Help:      "Total number of per-leg take-profit exits",
		}, []string{"variant"}),
		EmergencyExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "emergency_exits_total",
			Help:      "Total number of emergency liquidations",
		}),

		// Risk metrics
		DailyPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "daily_pnl",
			Help:      "Realized P&L accumulated for the current trading day",
		}),
		PeakEquity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "peak_equity",
			Help:      "Highest equity observed since start",
		}),
		CurrentDrawdown: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "current_drawdown_pct",
			Help:      "Current drawdown from peak equity in percent",
		}),
		TradingHalted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "trading_halted",
			Help:      "1 when the risk manager has halted new cycles",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastCycleClosed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_cycle_closed_timestamp",
			Help:      "Unix timestamp of the last cycle close",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordCycleClosed records the terminal metrics of one cycle.
func (m *Metrics) RecordCycleClosed(variant, reason string, pnl, durationSeconds float64) {
	m.CyclesClosed.WithLabelValues(variant, reason).Inc()
	m.CyclePnL.WithLabelValues(variant).Observe(pnl)
	m.CycleDuration.WithLabelValues(variant).Observe(durationSeconds)
}
