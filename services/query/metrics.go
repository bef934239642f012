package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recs_query_requests_total",
		Help: "Total number of gateway requests by operation and result",
	}, []string{"op", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recs_query_request_duration_seconds",
		Help:    "Gateway request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
