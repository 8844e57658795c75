package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks orderbook updates by message type.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_orderbook_updates_total",
			Help: "Total number of orderbook updates",
		},
		[]string{"type"},
	)

	// BooksTracked tracks the number of books in memory.
	BooksTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_orderbook_books_tracked",
		Help: "Number of order books tracked in memory",
	})

	// InvalidBooks tracks books waiting for a fresh snapshot.
	InvalidBooks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_orderbook_invalid_books",
		Help: "Number of order books currently invalid and awaiting resync",
	})

	// GapsTotal tracks detected sequence gaps.
	GapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_orderbook_sequence_gaps_total",
		Help: "Total number of delta sequence gaps detected",
	})

	// MalformedTotal tracks rejected malformed deltas.
	MalformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_orderbook_malformed_total",
		Help: "Total number of malformed orderbook updates",
	})

	// ResyncRequestsTotal tracks resync requests by reason.
	ResyncRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_orderbook_resync_requests_total",
			Help: "Total number of single-ticker resync requests",
		},
		[]string{"reason"},
	)

	// ResyncDroppedTotal tracks resync requests dropped because the channel was full.
	ResyncDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_orderbook_resync_dropped_total",
		Help: "Total number of resync requests dropped due to a full channel",
	})

	// ResyncTimeoutsTotal tracks resyncs re-requested after no snapshot arrived.
	ResyncTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_orderbook_resync_timeouts_total",
		Help: "Total number of resync requests re-issued after timing out",
	})

	// BooksCollectedTotal tracks books removed for closed markets.
	BooksCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_orderbook_books_collected_total",
		Help: "Total number of order books garbage-collected after market close",
	})

	// UpdateProcessingDuration tracks time to apply one update.
	UpdateProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_orderbook_update_processing_duration_seconds",
		Help:    "Time to apply one orderbook update",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 16),
	})

	// LockContentionDuration tracks time spent waiting for a ticker lock.
	LockContentionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_orderbook_lock_wait_seconds",
		Help:    "Time spent waiting for a per-ticker book lock",
		Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 16),
	})
)
