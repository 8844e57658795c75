package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsTotal tracks decision-loop intents by outcome.
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_app_intents_total",
			Help: "Total number of intents by outcome (accepted, rejected, unchanged)",
		},
		[]string{"outcome"},
	)

	// OrdersDroppedTotal tracks orders dropped because the executor queue was full.
	OrdersDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_app_orders_dropped_total",
		Help: "Total number of accepted orders dropped on a full executor queue",
	})

	// DecisionCycleDuration tracks one pass over every tracked market.
	DecisionCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_app_decision_cycle_duration_seconds",
		Help:    "Time taken to evaluate every tracked market once",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// ResyncRequestsTotal tracks resync requests by outcome.
	ResyncRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_app_resync_requests_total",
			Help: "Total number of order book resync requests by outcome",
		},
		[]string{"outcome"},
	)

	// MarketsRemovedTotal tracks markets garbage collected after close.
	MarketsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_app_markets_removed_total",
		Help: "Total number of closed markets removed from tracking",
	})
)
