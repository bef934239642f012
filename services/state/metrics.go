package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recs_state_remote_writes_total",
		Help: "Total number of remote event log writes by operation and result",
	}, []string{"op", "result"})

	localDecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recs_state_local_decode_failures_total",
		Help: "Total number of local blobs that could not be decoded",
	})
)
