package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
		[]string{"service"},
	)
)

// PrometheusMetrics records request counts, latencies and in-flight requests
// labeled by the chi route pattern, so path parameters do not explode label
// cardinality.
func PrometheusMetrics(serviceName string) func(http.Handler) http.Handler {
	inFlight := httpRequestsInFlight.WithLabelValues(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			inFlight.Inc()
			defer inFlight.Dec()

			sw := wrap(w)
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(serviceName, r.Method, route, strconv.Itoa(sw.status)).Inc()
			httpRequestDuration.WithLabelValues(serviceName, r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched chi route, or "unmatched" for requests
// that never reached a route.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
