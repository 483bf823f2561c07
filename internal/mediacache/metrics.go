package mediacache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_requests_total",
			Help: "Total number of media cache lookups by pool and result",
		},
		[]string{"pool", "result"},
	)

	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_evictions_total",
			Help: "Total number of entries evicted because a pool reached its count limit",
		},
		[]string{"pool"},
	)

	cacheFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacache_flushes_total",
			Help: "Total number of full flushes of both pools by reason",
		},
		[]string{"reason"},
	)

	cacheTrackedBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediacache_tracked_bytes",
			Help: "Bytes currently attributed to a pool",
		},
		[]string{"pool"},
	)
)
