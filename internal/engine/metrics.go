package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal tracks decisions by action.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kalshi_engine_decisions_total",
			Help: "Total number of trading decisions by action",
		},
		[]string{"action"},
	)

	// EvaluationDuration tracks time to evaluate one market.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_engine_evaluation_duration_seconds",
		Help:    "Time taken to evaluate one market",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
	})
)
