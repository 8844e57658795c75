package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal tracks orders received by mode and contract side.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_execution_orders_total",
			Help: "Total number of orders received by the executor",
		},
		[]string{"mode", "side"},
	)

	// FillsTotal tracks fills by liquidity role.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_execution_fills_total",
			Help: "Total number of fills",
		},
		[]string{"role"},
	)

	// OrdersCanceledTotal tracks resting quotes removed without a fill.
	OrdersCanceledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_execution_orders_canceled_total",
			Help: "Total number of resting quotes canceled",
		},
		[]string{"reason"},
	)

	// FeesPaidCents tracks cumulative fees.
	FeesPaidCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_execution_fees_paid_cents_total",
		Help: "Cumulative fees paid in cents",
	})

	// ProfitRealizedUSD tracks realized PnL net of fees.
	ProfitRealizedUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_execution_profit_realized_usd",
		Help: "Cumulative realized PnL net of fees",
	})

	// ExecutionDurationSeconds tracks execution latency.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_execution_duration_seconds",
		Help:    "Duration of order execution",
		Buckets: prometheus.DefBuckets,
	})

	// ExecutionErrorsTotal tracks execution failures.
	ExecutionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_execution_errors_total",
		Help: "Total number of execution errors",
	})
)
