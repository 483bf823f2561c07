package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	// 0 means counts are never cleared while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// MinRequests is the number of requests needed before the ratio is evaluated.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig returns defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejected_total",
			Help: "Total number of requests rejected because the breaker was open",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(circuitBreakerState)
	prometheus.MustRegister(circuitBreakerRejectedTotal)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ErrCircuitOpen is returned when the breaker rejects a request.
var ErrCircuitOpen = gobreaker.ErrOpenState

// ErrTooManyRequests is returned when the half-open trial quota is used up.
var ErrTooManyRequests = gobreaker.ErrTooManyRequests

// CircuitBreakerClient wraps a Doer with circuit breaker protection.
type CircuitBreakerClient struct {
	next    Doer
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	name    string
}

// NewCircuitBreakerClient wraps next with a circuit breaker.
func NewCircuitBreakerClient(next Doer, cbCfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        cbCfg.Name,
		MaxRequests: cbCfg.MaxRequests,
		Interval:    cbCfg.Interval,
		Timeout:     cbCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cbCfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cbCfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A cancelled caller says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	circuitBreakerState.WithLabelValues(cbCfg.Name).Set(0)

	return &CircuitBreakerClient{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
		name:    cbCfg.Name,
	}
}

// Do executes req through the breaker. 5xx and 429 responses count as
// failures; their bodies are consumed and a *StatusError is returned instead.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.next.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if isRetryableStatus(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		}
		return resp, nil
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		circuitBreakerRejectedTotal.WithLabelValues(c.name).Inc()
		c.logger.WarnContext(ctx, "circuit breaker rejected request",
			slog.String("breaker", c.name),
			slog.String("url", req.URL.Redacted()),
		)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get performs an HTTP GET through the breaker.
func (c *CircuitBreakerClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := NewGetRequest(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
