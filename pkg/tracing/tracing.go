// Package tracing configures OpenTelemetry for the feed service and offers a
// small span helper for timed operations.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP/HTTP collector
	SampleRate     float64 // fraction of root spans kept, clamped to [0, 1]
	Enabled        bool
}

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider exporting over OTLP/HTTP. When
// tracing is disabled the global no-op provider is left in place and the
// returned ShutdownFunc does nothing.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Sampler maps a sample rate to a parent-based sampler so that remote callers
// keep control over already-sampled traces.
func Sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

var slowOps struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowOperationLogging makes every span started with StartOperation log a
// warning when it takes at least threshold. Zero disables it.
func SetSlowOperationLogging(threshold time.Duration, logger *slog.Logger) {
	slowOps.mu.Lock()
	defer slowOps.mu.Unlock()
	slowOps.threshold = threshold
	slowOps.logger = logger
}

func slowOperationConfig() (time.Duration, *slog.Logger) {
	slowOps.mu.RLock()
	defer slowOps.mu.RUnlock()
	return slowOps.threshold, slowOps.logger
}

// StartOperation starts a span and returns a function that ends it, recording
// err when non-nil:
//
//	ctx, end := tracing.StartOperation(ctx, "mediafeed/loader", "media.download")
//	defer func() { end(err) }()
func StartOperation(ctx context.Context, tracerName, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if threshold, logger := slowOperationConfig(); threshold > 0 && logger != nil {
			if elapsed := time.Since(start); elapsed >= threshold {
				args := []any{
					slog.String("operation", operation),
					slog.Duration("duration", elapsed),
				}
				if err != nil {
					args = append(args, slog.String("error", err.Error()))
				}
				logger.WarnContext(ctx, "slow operation detected", args...)
			}
		}
	}
}
