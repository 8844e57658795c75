package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KillSwitchActive indicates whether trading is halted.
	KillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_kill_switch_active",
		Help: "Whether the kill switch is active (1=halted, 0=trading)",
	})

	// KillSwitchActivationsTotal counts kill switch activations.
	KillSwitchActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_kill_switch_activations_total",
		Help: "Total number of kill switch activations",
	})

	// KillSwitchResetsTotal counts manual resets.
	KillSwitchResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_kill_switch_resets_total",
		Help: "Total number of kill switch resets",
	})

	// DailyPnL tracks realized PnL for the current UTC day.
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_daily_pnl_dollars",
		Help: "Realized PnL for the current UTC day in dollars",
	})

	// DailyResetsTotal counts UTC midnight rollovers.
	DailyResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_daily_pnl_resets_total",
		Help: "Total number of daily PnL resets at UTC midnight",
	})
)
