package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AlertsTotal tracks alert deliveries by outcome.
var AlertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kalshi_alerts_total",
		Help: "Total alerts by outcome (sent, error)",
	},
	[]string{"outcome"},
)
