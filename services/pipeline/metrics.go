package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recs_pipeline_runs_total",
		Help: "Total number of settled pipeline runs by outcome",
	}, []string{"outcome"})

	staleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recs_pipeline_stale_total",
		Help: "Total number of pipeline results discarded as stale",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recs_pipeline_run_duration_seconds",
		Help:    "Time from trigger to settle",
		Buckets: prometheus.DefBuckets,
	})
)
