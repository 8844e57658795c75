package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsDiscoveredTotal tracks markets returned by polls.
	MarketsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_discovery_markets_total",
		Help: "Total number of markets returned by discovery polls",
	})

	// NewMarketsTotal tracks newly tracked markets.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_discovery_new_markets_total",
		Help: "Total number of new markets tracked",
	})

	// ClosedMarketsTotal tracks markets that stopped trading.
	ClosedMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_discovery_closed_markets_total",
		Help: "Total number of markets reported closed",
	})

	// DroppedEventsTotal tracks channel sends dropped because the reader lagged.
	DroppedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_discovery_dropped_events_total",
			Help: "Discovery events dropped on a full channel",
		},
		[]string{"channel"},
	)

	// PollDurationSeconds tracks poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_discovery_poll_duration_seconds",
		Help:    "Duration of a full discovery poll",
		Buckets: prometheus.DefBuckets,
	})

	// RequestDurationSeconds tracks single REST request latency.
	RequestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_discovery_request_duration_seconds",
		Help:    "Duration of Kalshi REST requests",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_discovery_poll_errors_total",
		Help: "Total number of discovery poll failures",
	})
)
