package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal tracks intents run through the limit checks.
	ChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_risk_checks_total",
		Help: "Total number of intents checked against risk limits",
	})

	// RejectionsTotal tracks rejected intents by reason.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_risk_rejections_total",
			Help: "Total number of intents rejected by risk checks",
		},
		[]string{"reason"},
	)

	// TotalNotional tracks gross exposure across markets.
	TotalNotional = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_risk_total_notional_dollars",
		Help: "Gross notional exposure across all markets in dollars",
	})
)
