package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsTracked is the number of markets in the registry.
	MarketsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_markets_tracked",
		Help: "Number of markets in the registry",
	})

	// LookupsTotal tracks registry lookups by where they were served from.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_markets_lookups_total",
			Help: "Total registry lookups by source (cache, map, miss)",
		},
		[]string{"source"},
	)
)
