package engine

import (
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsCompletedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_steps_completed_total",
			Help: "Count of engine steps committed.",
		},
	)
	stepsFencedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_steps_fenced_total",
			Help: "Count of scheduled steps discarded by the generation fence.",
		},
	)
	inputsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_inputs_processed_total",
			Help: "Count of inputs applied, by result kind.",
		},
		[]string{"kind"},
	)
	kicksCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_kicks_total",
			Help: "Count of generation bumps triggered by input submission.",
		},
	)
	stepWindowMillis = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_step_window_milliseconds",
			Help:    "Distribution of simulated time advanced per step.",
			Buckets: []float64{16, 250, 500, 1000, 2000, 5000, 60000, 600000},
		},
	)

	// tickRate tracks ticks over the trailing second, surfaced as a gauge so
	// operators can see whether catch-up steps saturate the node.
	tickRate = ratecounter.NewRateCounter(time.Second)
	_        = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "engine_ticks_per_second",
			Help: "Simulation ticks executed over the last second.",
		},
		func() float64 {
			return float64(tickRate.Rate())
		},
	)
)
