// Package mediacache holds fetched media bytes in two independent pools
// (images and videos) under a shared byte budget.
//
// Each pool is capped by entry count and tracks the bytes attributed to its
// entries. When the tracked total of both pools exceeds the budget, both pools
// are flushed entirely.
package mediacache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/mediafeed/internal/domain"
)

// Defaults for Config fields left at zero.
const (
	DefaultByteBudget      int64 = 100 * 1024 * 1024
	DefaultImageCountLimit       = 100
	DefaultVideoCountLimit       = 50
)

// Config holds cache limits.
type Config struct {
	ByteBudget      int64
	ImageCountLimit int
	VideoCountLimit int
}

// DefaultConfig returns the limits used by the feed client.
func DefaultConfig() Config {
	return Config{
		ByteBudget:      DefaultByteBudget,
		ImageCountLimit: DefaultImageCountLimit,
		VideoCountLimit: DefaultVideoCountLimit,
	}
}

// PoolStats describes one pool.
type PoolStats struct {
	Entries     int   `json:"entries"`
	TrackedSize int64 `json:"tracked_size"`
	CountLimit  int   `json:"count_limit"`
}

// Stats is a consistent snapshot of the cache.
type Stats struct {
	Image      PoolStats `json:"image"`
	Video      PoolStats `json:"video"`
	TotalSize  int64     `json:"total_size"`
	ByteBudget int64     `json:"byte_budget"`
	Flushes    uint64    `json:"flushes"`
}

// Cache is safe for concurrent use. Lookups share a read lock; Put and Clear
// are exclusive with each other and with lookups. A lookup racing a flush
// observes either the entry or a miss.
type Cache struct {
	mu      sync.RWMutex
	budget  int64
	image   *pool
	video   *pool
	flushes uint64
	logger  *slog.Logger
}

// New creates a cache. Zero or negative limits fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Cache {
	if cfg.ByteBudget <= 0 {
		cfg.ByteBudget = DefaultByteBudget
	}
	if cfg.ImageCountLimit <= 0 {
		cfg.ImageCountLimit = DefaultImageCountLimit
	}
	if cfg.VideoCountLimit <= 0 {
		cfg.VideoCountLimit = DefaultVideoCountLimit
	}
	return &Cache{
		budget: cfg.ByteBudget,
		image:  newPool(cfg.ImageCountLimit),
		video:  newPool(cfg.VideoCountLimit),
		logger: logger,
	}
}

func (c *Cache) pool(p domain.Pool) *pool {
	switch p {
	case domain.PoolImage:
		return c.image
	case domain.PoolVideo:
		return c.video
	default:
		return nil
	}
}

// Get returns the payload cached under key in pool p. The returned slice is
// shared with the cache and must not be modified.
func (c *Cache) Get(p domain.Pool, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	target := c.pool(p)
	if target == nil {
		return nil, false
	}

	payload, ok := target.get(key)
	if ok {
		cacheRequestsTotal.WithLabelValues(p.String(), "hit").Inc()
	} else {
		cacheRequestsTotal.WithLabelValues(p.String(), "miss").Inc()
	}
	return payload, ok
}

// Put stores payload under key in pool p and attributes size bytes to it; a
// negative size attributes len(payload). Overwriting a key replaces its
// previous attribution. If the tracked total then exceeds the byte budget,
// both pools are flushed, including the entry just stored.
func (c *Cache) Put(p domain.Pool, key string, payload []byte, size int64) error {
	if size < 0 {
		size = int64(len(payload))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.pool(p)
	if target == nil {
		return fmt.Errorf("put %q: unknown cache pool %d", key, int(p))
	}

	if evicted := target.put(key, payload, size); evicted > 0 {
		cacheEvictionsTotal.WithLabelValues(p.String()).Add(float64(evicted))
	}

	if total := c.image.size + c.video.size; total > c.budget {
		c.logger.Info("media cache over budget, flushing all pools",
			slog.Int64("total_size", total),
			slog.Int64("byte_budget", c.budget),
			slog.String("pool", p.String()),
			slog.String("key", key),
		)
		c.flushLocked("budget")
		return nil
	}

	c.publishSizesLocked()
	return nil
}

// Clear flushes both pools regardless of size, e.g. on host memory pressure.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("media cache cleared",
		slog.Int("image_entries", c.image.len()),
		slog.Int("video_entries", c.video.len()),
	)
	c.flushLocked("manual")
}

// Stats returns a snapshot of both pools.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Image: PoolStats{
			Entries:     c.image.len(),
			TrackedSize: c.image.size,
			CountLimit:  c.image.limit,
		},
		Video: PoolStats{
			Entries:     c.video.len(),
			TrackedSize: c.video.size,
			CountLimit:  c.video.limit,
		},
		TotalSize:  c.image.size + c.video.size,
		ByteBudget: c.budget,
		Flushes:    c.flushes,
	}
}

// TrackedSize returns the bytes currently attributed to pool p.
func (c *Cache) TrackedSize(p domain.Pool) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if target := c.pool(p); target != nil {
		return target.size
	}
	return 0
}

func (c *Cache) flushLocked(reason string) {
	c.image.reset()
	c.video.reset()
	c.flushes++
	cacheFlushesTotal.WithLabelValues(reason).Inc()
	c.publishSizesLocked()
}

func (c *Cache) publishSizesLocked() {
	cacheTrackedBytes.WithLabelValues(domain.PoolImage.String()).Set(float64(c.image.size))
	cacheTrackedBytes.WithLabelValues(domain.PoolVideo.String()).Set(float64(c.video.size))
}
