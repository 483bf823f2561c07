// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker reports the health of one dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultTimeout bounds a readiness run.
const DefaultTimeout = 5 * time.Second

// Response is the JSON body returned by both probes.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	fn       Checker
	critical bool
}

// Handler provides HTTP health check endpoints. A failing critical check
// makes the service not ready (503); a failing non-critical check only
// degrades it (200).
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

// NewHandler creates a health handler.
func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]check),
		timeout: DefaultTimeout,
	}
}

// Register adds a critical check. Registering a name twice replaces it.
func (h *Handler) Register(name string, fn Checker) {
	h.RegisterCritical(name, fn)
}

// RegisterCritical adds a check whose failure makes the service not ready.
func (h *Handler) RegisterCritical(name string, fn Checker) {
	h.register(name, check{fn: fn, critical: true})
}

// RegisterNonCritical adds a check whose failure only degrades the service.
func (h *Handler) RegisterNonCritical(name string, fn Checker) {
	h.register(name, check{fn: fn})
}

func (h *Handler) register(name string, c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

// LivenessHandler always answers 200 while the process serves requests.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs all checks concurrently and answers 200 or 503.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, resp)
	}
}

// Check runs every registered check and aggregates the result.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, c := range checks {
		wg.Add(1)
		go func(name string, c check) {
			defer wg.Done()
			res := CheckResult{Status: StatusUp, Critical: c.critical}
			if err := c.fn(ctx); err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	overall := StatusUp
	for _, res := range results {
		if res.Status != StatusDown {
			continue
		}
		if res.Critical {
			overall = StatusDown
			break
		}
		overall = StatusDegraded
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    results,
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
