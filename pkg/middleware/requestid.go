package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mediafeed/pkg/logger"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

// RequestLogging assigns a correlation ID to every request and logs one line
// per request once the handler returns.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			r = r.WithContext(ctx)
			w.Header().Set(CorrelationHeader, correlationID)

			sw := wrap(w)
			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			l.LogAttrs(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", sw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("correlation_id", correlationID),
			)
		})
	}
}
