// Package httpclient provides an outbound HTTP client with retries, jittered
// backoff and an optional circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
	UserAgent       string
}

// DefaultConfig returns the settings used against the media API.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
		UserAgent:       "mediafeed/1.0",
	}
}

// Doer is satisfied by Client and CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client wraps http.Client with retry logic and pooled connections.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a new HTTP client.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

// Do executes req, retrying network errors, 429 and 5xx responses (except
// 501) up to MaxRetries times. A Retry-After header on a retried response
// overrides the computed backoff, capped at RetryWaitMax. The response of the
// last attempt is returned as is; callers check the status code.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var wait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) && attempt < c.config.MaxRetries {
				wait = c.backoff(attempt)
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries {
			wait = c.backoff(attempt)
			if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				wait = min(ra, c.config.RetryWaitMax)
			}
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}
}

// Get performs an HTTP GET with the given extra headers.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := NewGetRequest(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// NewGetRequest builds a GET request carrying header.
func NewGetRequest(ctx context.Context, url string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// backoff returns the jittered exponential wait before attempt+1.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt))
	if wait > c.config.RetryWaitMax {
		wait = c.config.RetryWaitMax
	}
	return addJitter(wait)
}

// addJitter spreads d uniformly over [0.75d, 1.25d].
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) / 2
	return time.Duration(float64(d)*0.75 + rand.Float64()*spread)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		(code >= 500 && code != http.StatusNotImplemented)
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
