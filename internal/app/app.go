package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/mediafeed/internal/config"
	"github.com/utafrali/mediafeed/internal/feed"
	handler "github.com/utafrali/mediafeed/internal/handler/http"
	"github.com/utafrali/mediafeed/internal/layout"
	"github.com/utafrali/mediafeed/internal/loader"
	"github.com/utafrali/mediafeed/internal/mediacache"
	redisstore "github.com/utafrali/mediafeed/internal/mediacache/redis"
	"github.com/utafrali/mediafeed/internal/pexels"
	"github.com/utafrali/mediafeed/pkg/database"
	"github.com/utafrali/mediafeed/pkg/health"
	"github.com/utafrali/mediafeed/pkg/httpclient"
	"github.com/utafrali/mediafeed/pkg/tracing"
)

const (
	serviceName    = "mediafeed"
	serviceVersion = "1.0.0"
)

// App wires together all dependencies and runs the feed service.
type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	controller    *feed.Controller
	redis         *redis.Client
	httpServer    *http.Server
	traceShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// No page is fetched until Run.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelExporterEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	tracing.SetSlowOperationLogging(cfg.SlowOperationWarn, logger)

	// Outbound HTTP: retries inside, circuit breaker outside. Collection
	// pages and media bytes trip separate breakers, so a failing media host
	// cannot stop pagination.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPClientTimeout
	httpCfg.MaxRetries = cfg.HTTPClientMaxRetries
	apiBreaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("pexels"),
		logger,
	)
	mediaBreaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("media"),
		logger,
	)

	pexelsCfg := pexels.Config{
		BaseURL:      cfg.PexelsBaseURL,
		APIKey:       cfg.PexelsAPIKey,
		CollectionID: cfg.PexelsCollectionID,
		Sort:         cfg.PexelsSort,
	}
	pexelsClient, err := pexels.New(apiBreaker, pexelsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create pexels client: %w", err)
	}
	mediaClient, err := pexels.New(mediaBreaker, pexelsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create media client: %w", err)
	}
	if cfg.PexelsAPIKey == "" {
		logger.Warn("PEXELS_API_KEY is empty, collection requests will be rejected upstream")
	}

	// Feed core.
	balancer := layout.NewBalancer(cfg.ColumnCount, layout.ViewportHeight(cfg.ViewportWidth))
	controller := feed.NewController(pexelsClient, balancer, cfg.ItemsPerPage, logger)

	cache := mediacache.New(mediacache.Config{
		ByteBudget:      cfg.CacheByteBudget,
		ImageCountLimit: cfg.CacheImageCountLimit,
		VideoCountLimit: cfg.CacheVideoCountLimit,
	}, logger)
	if err := registerCollector(mediacache.NewStatsCollector(cache)); err != nil {
		return nil, fmt.Errorf("register cache collector: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("pexels", breakerCheck(apiBreaker))
	healthHandler.RegisterNonCritical("media", breakerCheck(mediaBreaker))

	// Optional shared second-level cache.
	var (
		shared      loader.SharedStore
		redisClient *redis.Client
	)
	if cfg.RedisEnabled {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:        cfg.RedisHost,
			Port:        cfg.RedisPort,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr()))

		store := redisstore.NewStore(redisClient, cfg.MediaCacheTTL)
		healthHandler.RegisterNonCritical("redis", store.Ping)
		shared = store
	}

	mediaLoader := loader.New(cache, mediaClient, shared, logger)

	router := handler.NewRouter(controller, mediaLoader, cache, healthHandler, handler.RouterConfig{
		FetchTimeout: cfg.FetchTimeout,
		MediaMaxAge:  cfg.MediaCacheTTL,
	}, logger)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Feed loads may retry upstream for longer than a plain read.
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		controller:    controller,
		redis:         redisClient,
		httpServer:    httpServer,
		traceShutdown: traceShutdown,
	}, nil
}

func breakerCheck(cb *httpclient.CircuitBreakerClient) health.Checker {
	return func(ctx context.Context) error {
		if cb.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	}
}

// registerCollector tolerates a collector of the same shape already being
// registered, which happens when more than one App is built in a process.
func registerCollector(c prometheus.Collector) error {
	err := prometheus.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run loads the first page in the background, starts the HTTP server and
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	go a.initialLoad(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// initialLoad fetches page 1. A failure is kept as the feed's last error for
// clients to see and retry.
func (a *App) initialLoad(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	if err := a.controller.Refresh(ctx); err != nil {
		a.logger.Warn("initial feed load failed", slog.String("error", err.Error()))
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.traceShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
