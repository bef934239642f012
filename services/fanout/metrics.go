package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recs_fanout_runs_total",
		Help: "Total number of settled fan-out runs by outcome",
	}, []string{"outcome"})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recs_fanout_lookups_total",
		Help: "Total number of trailer lookups by result",
	}, []string{"result"})
)
