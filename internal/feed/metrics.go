package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_page_loads_total",
			Help: "Total number of feed page fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	feedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_items",
			Help: "Number of items in the authoritative feed list by session",
		},
		[]string{"session"},
	)
)
