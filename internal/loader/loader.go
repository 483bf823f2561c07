// Package loader resolves media bytes for feed items through the in-process
// cache, an optional shared store and finally the origin.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/mediafeed/internal/domain"
	"github.com/utafrali/mediafeed/internal/mediacache"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/logger"
	"github.com/utafrali/mediafeed/pkg/tracing"
)

const tracerName = "github.com/utafrali/mediafeed/internal/loader"

// Source names where a payload was found.
type Source string

const (
	SourceMemory Source = "memory"
	SourceShared Source = "shared"
	SourceOrigin Source = "origin"
)

var loadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_loads_total",
		Help: "Total number of media loads by pool and source",
	},
	[]string{"pool", "source"},
)

// Downloader fetches bytes from the origin.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// SharedStore is a cache shared between processes, e.g. Redis.
type SharedStore interface {
	Get(ctx context.Context, pool domain.Pool, key string) ([]byte, bool, error)
	Set(ctx context.Context, pool domain.Pool, key string, payload []byte) error
}

// Result is a resolved media payload.
type Result struct {
	URL     string
	Pool    domain.Pool
	Payload []byte
	Source  Source
}

// Loader is safe for concurrent use. Concurrent misses for the same URL share
// one origin download.
type Loader struct {
	cache      *mediacache.Cache
	shared     SharedStore
	downloader Downloader
	group      singleflight.Group
	logger     *slog.Logger
}

// New creates a loader. shared may be nil.
func New(cache *mediacache.Cache, downloader Downloader, shared SharedStore, logger *slog.Logger) *Loader {
	return &Loader{
		cache:      cache,
		shared:     shared,
		downloader: downloader,
		logger:     logger,
	}
}

// LoadItem resolves the payload a grid cell renders for item.
func (l *Loader) LoadItem(ctx context.Context, item *domain.MediaItem) (*Result, error) {
	url, pool, ok := item.RenderURL()
	if !ok {
		return nil, apperrors.NotFound("renderable media for item", fmt.Sprint(item.ID))
	}
	return l.Load(ctx, pool, url)
}

// Load returns the payload for url, filling the caches on the way back. A
// failing shared store is logged and bypassed.
func (l *Loader) Load(ctx context.Context, pool domain.Pool, url string) (res *Result, err error) {
	if !pool.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown cache pool %d", int(pool)))
	}

	if payload, ok := l.cache.Get(pool, url); ok {
		loadsTotal.WithLabelValues(pool.String(), string(SourceMemory)).Inc()
		return &Result{URL: url, Pool: pool, Payload: payload, Source: SourceMemory}, nil
	}

	ctx, end := tracing.StartOperation(ctx, tracerName, "media.load",
		attribute.String("media.pool", pool.String()),
	)
	defer func() { end(err) }()

	ch := l.group.DoChan(pool.String()+"|"+url, func() (any, error) {
		// The shared download outlives any single caller.
		return l.fill(context.WithoutCancel(ctx), pool, url)
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.ServiceUnavailable("media load interrupted", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		out := *r.Val.(*Result)
		return &out, nil
	}
}

func (l *Loader) fill(ctx context.Context, pool domain.Pool, url string) (*Result, error) {
	log := logger.WithContext(ctx, l.logger).With(
		slog.String("pool", pool.String()),
		slog.String("url", url),
	)

	if l.shared != nil {
		payload, ok, err := l.shared.Get(ctx, pool, url)
		switch {
		case err != nil:
			log.WarnContext(ctx, "shared media store unavailable, falling back to origin",
				slog.String("error", err.Error()))
		case ok:
			l.put(ctx, log, pool, url, payload, false)
			loadsTotal.WithLabelValues(pool.String(), string(SourceShared)).Inc()
			return &Result{URL: url, Pool: pool, Payload: payload, Source: SourceShared}, nil
		}
	}

	payload, err := l.downloader.Download(ctx, url)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NetworkFailure("download media", err)
		}
		log.WarnContext(ctx, "media download failed", slog.String("error", err.Error()))
		return nil, err
	}

	l.put(ctx, log, pool, url, payload, true)
	loadsTotal.WithLabelValues(pool.String(), string(SourceOrigin)).Inc()
	log.DebugContext(ctx, "media downloaded", slog.Int("bytes", len(payload)))
	return &Result{URL: url, Pool: pool, Payload: payload, Source: SourceOrigin}, nil
}

func (l *Loader) put(ctx context.Context, log *slog.Logger, pool domain.Pool, url string, payload []byte, shared bool) {
	if err := l.cache.Put(pool, url, payload, -1); err != nil {
		log.ErrorContext(ctx, "failed to cache media", slog.String("error", err.Error()))
	}
	if shared && l.shared != nil {
		if err := l.shared.Set(ctx, pool, url, payload); err != nil {
			log.WarnContext(ctx, "failed to write shared media store", slog.String("error", err.Error()))
		}
	}
}
