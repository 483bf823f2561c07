package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/mediafeed/pkg/health"
	"github.com/utafrali/mediafeed/pkg/middleware"
)

// RouterConfig holds the knobs of the HTTP surface.
type RouterConfig struct {
	FetchTimeout time.Duration
	MediaMaxAge  time.Duration
}

// NewRouter creates a chi router with all feed service routes registered.
func NewRouter(
	feedSvc FeedService,
	mediaLoader MediaLoader,
	cache CacheService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("feed"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	feedHandler := NewFeedHandler(feedSvc, cfg.FetchTimeout, logger)
	mediaHandler := NewMediaHandler(feedSvc, mediaLoader, cfg.MediaMaxAge, logger)
	cacheHandler := NewCacheHandler(cache, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/feed", func(r chi.Router) {
			r.Get("/", feedHandler.GetFeed)
			r.Post("/refresh", feedHandler.Refresh)
			r.Post("/next", feedHandler.LoadNextPage)
			r.Post("/next-if-needed", feedHandler.LoadNextPageIfNeeded)
		})
		r.Get("/media/{id}", mediaHandler.GetMedia)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", cacheHandler.GetStats)
			r.Delete("/", cacheHandler.Clear)
		})
	})

	return r
}
