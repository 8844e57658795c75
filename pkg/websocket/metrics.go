package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live feed connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks frames by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_ws_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"type"},
	)

	// MessageLatencySeconds tracks decode and dispatch latency.
	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ws_message_latency_seconds",
		Help:    "WebSocket message processing latency",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionCount tracks active market subscriptions.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_ws_subscription_count",
		Help: "Number of active market subscriptions",
	})

	// MessagesDroppedTotal tracks messages dropped on a full channel.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_ws_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped",
		},
		[]string{"reason"},
	)

	// ProtocolErrorsTotal tracks frames that failed to decode.
	ProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_ws_protocol_errors_total",
			Help: "Total number of malformed feed frames",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// UnsubscriptionsTotal tracks market unsubscriptions.
	UnsubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_unsubscriptions_total",
		Help: "Total number of market unsubscriptions",
	})

	// ResubscriptionsTotal tracks resubscribe-all passes after a reconnect.
	ResubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_resubscriptions_total",
		Help: "Total number of resubscribe-all passes",
	})

	// ResyncsTotal tracks single-ticker resyncs.
	ResyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_resyncs_total",
		Help: "Total number of single-ticker resyncs",
	})

	// ResyncThrottledTotal tracks resyncs delayed by the per-ticker limiter.
	ResyncThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ws_resync_throttled_total",
		Help: "Total number of resyncs delayed by rate limiting",
	})

	// PoolActiveConnections tracks managers in the pool.
	PoolActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_ws_pool_active_connections",
		Help: "Number of active connections in WebSocket pool",
	})

	// PoolSubscriptionDistribution tracks subscriptions per pool connection.
	PoolSubscriptionDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ws_pool_subscription_distribution",
		Help:    "Distribution of subscriptions across pool connections",
		Buckets: prometheus.LinearBuckets(0, 100, 10),
	})

	// PoolMessageMultiplexLatency tracks latency added by multiplexing.
	PoolMessageMultiplexLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_ws_pool_multiplex_latency_seconds",
		Help:    "Latency added by message multiplexing in pool",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
	})
)
