package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FillsTotal tracks processed fills by contract side.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_ledger_fills_total",
			Help: "Total number of fills booked",
		},
		[]string{"side"},
	)

	// RealizedPnL tracks cumulative realized PnL net of fees.
	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_ledger_realized_pnl_dollars",
		Help: "Cumulative realized PnL net of fees in dollars",
	})

	// OpenOrders tracks resting orders.
	OpenOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kalshi_ledger_open_orders",
		Help: "Number of resting orders",
	})

	// OrdersExpiredTotal tracks orders removed by TTL.
	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_ledger_orders_expired_total",
		Help: "Total number of resting orders expired by TTL",
	})
)
