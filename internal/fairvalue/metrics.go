package fairvalue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks fair value writes by source.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_fairvalue_updates_total",
			Help: "Total fair value updates by source",
		},
		[]string{"source"},
	)

	// UpdatesDroppedTotal tracks writes the cache refused.
	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_fairvalue_updates_dropped_total",
		Help: "Total fair value updates not admitted by the cache",
	})

	// SpotUpdatesTotal tracks spot observations.
	SpotUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_fairvalue_spot_updates_total",
		Help: "Total spot price observations",
	})

	// UnpricedTotal tracks markets skipped for an unknown strike type.
	UnpricedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_fairvalue_unpriced_total",
			Help: "Markets the model could not price, by strike type",
		},
		[]string{"strike_type"},
	)
)
