package mediacache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/mediafeed/internal/domain"
)

// StatsCollector exports a Cache's occupancy as Prometheus metrics, read
// from Stats at scrape time.
type StatsCollector struct {
	cache *Cache

	entries    *prometheus.Desc
	countLimit *prometheus.Desc
	byteBudget *prometheus.Desc
	totalBytes *prometheus.Desc
}

// NewStatsCollector creates a collector for cache. Register it once.
func NewStatsCollector(cache *Cache) *StatsCollector {
	return &StatsCollector{
		cache: cache,
		entries: prometheus.NewDesc(
			"mediacache_entries",
			"Number of entries currently held in a pool",
			[]string{"pool"}, nil,
		),
		countLimit: prometheus.NewDesc(
			"mediacache_count_limit",
			"Maximum number of entries a pool may hold",
			[]string{"pool"}, nil,
		),
		byteBudget: prometheus.NewDesc(
			"mediacache_byte_budget",
			"Tracked byte total above which both pools are flushed",
			nil, nil,
		),
		totalBytes: prometheus.NewDesc(
			"mediacache_total_tracked_bytes",
			"Bytes attributed to both pools together",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.countLimit
	ch <- c.byteBudget
	ch <- c.totalBytes
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()

	for _, p := range []struct {
		pool  domain.Pool
		stats PoolStats
	}{
		{domain.PoolImage, s.Image},
		{domain.PoolVideo, s.Video},
	} {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(p.stats.Entries), p.pool.String())
		ch <- prometheus.MustNewConstMetric(c.countLimit, prometheus.GaugeValue, float64(p.stats.CountLimit), p.pool.String())
	}
	ch <- prometheus.MustNewConstMetric(c.byteBudget, prometheus.GaugeValue, float64(s.ByteBudget))
	ch <- prometheus.MustNewConstMetric(c.totalBytes, prometheus.GaugeValue, float64(s.TotalSize))
}
