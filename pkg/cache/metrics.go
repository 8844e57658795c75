package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_cache_sets_total",
		Help: "Total number of cache sets",
	})

	CacheDroppedSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_cache_dropped_sets_total",
		Help: "Total number of cache sets rejected by admission or contention",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
