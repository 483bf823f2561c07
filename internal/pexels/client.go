// Package pexels fetches collection pages and media bytes from the Pexels API.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/mediafeed/internal/domain"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/httpclient"
	"github.com/utafrali/mediafeed/pkg/logger"
	"github.com/utafrali/mediafeed/pkg/tracing"
	"github.com/utafrali/mediafeed/pkg/validator"
)

const (
	tracerName = "github.com/utafrali/mediafeed/internal/pexels"
	upstream   = "pexels"

	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.pexels.com/v1/"

	// MaxPerPage is the largest page size the API serves.
	MaxPerPage = 80

	// DefaultMaxDownloadBytes bounds a single media download.
	DefaultMaxDownloadBytes int64 = 64 << 20
)

// Config selects the collection to page through.
type Config struct {
	BaseURL          string
	APIKey           string
	CollectionID     string
	Sort             string
	MaxDownloadBytes int64
}

// Client implements feed.Fetcher against a Pexels collection. It is safe for
// concurrent use.
type Client struct {
	http   httpclient.Doer
	base   *url.URL
	cfg    Config
	logger *slog.Logger
}

// New creates a client. Requests go through doer, which normally carries the
// retry and circuit breaker policy.
func New(doer httpclient.Doer, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.CollectionID == "" {
		return nil, fmt.Errorf("collection id is required")
	}

	return &Client{
		http:   doer,
		base:   base,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// pageURL builds collections/{id}?page=&per_page=&sort=.
func (c *Client) pageURL(page, perPage int) string {
	u := c.base.JoinPath("collections", c.cfg.CollectionID)
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if c.cfg.Sort != "" {
		q.Set("sort", c.cfg.Sort)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchPage returns the items of one collection page in server order. Transport
// failures and non-2xx responses are NetworkFailure (or ServiceUnavailable when
// the API sheds load); a body that does not decode into valid items is a
// DecodeFailure.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) (items []*domain.MediaItem, err error) {
	if page < 1 {
		return nil, apperrors.InvalidInput("page must be at least 1")
	}
	if perPage < 1 || perPage > MaxPerPage {
		return nil, apperrors.InvalidInput(fmt.Sprintf("per_page must be between 1 and %d", MaxPerPage))
	}

	ctx, end := tracing.StartOperation(ctx, tracerName, "pexels.fetch_page",
		attribute.String("pexels.collection", c.cfg.CollectionID),
		attribute.Int("pexels.page", page),
		attribute.Int("pexels.per_page", perPage),
	)
	defer func() { end(err) }()

	req, err := httpclient.NewGetRequest(ctx, c.pageURL(page, perPage), c.authHeader())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, httpclient.ClassifyError(err, upstream)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ResponseError(resp, upstream)
	}
	defer func() { _ = resp.Body.Close() }()

	var body collectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.DecodeFailure("pexels returned a malformed collection page", err)
	}
	if err := validator.Validate(&body); err != nil {
		return nil, apperrors.DecodeFailure("pexels returned invalid media items", err)
	}

	items = make([]*domain.MediaItem, 0, len(body.Media))
	for i := range body.Media {
		items = append(items, body.Media[i].toDomain())
	}

	logger.WithContext(ctx, c.logger).DebugContext(ctx, "fetched collection page",
		slog.String("collection", c.cfg.CollectionID),
		slog.Int("page", page),
		slog.Int("per_page", perPage),
		slog.Int("items", len(items)),
		slog.Int("total_results", body.TotalResults),
	)
	return items, nil
}

// Download fetches the bytes behind a media URL. Payloads larger than the
// configured limit are rejected.
func (c *Client) Download(ctx context.Context, rawURL string) (payload []byte, err error) {
	ctx, end := tracing.StartOperation(ctx, tracerName, "pexels.download")
	defer func() { end(err) }()

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid media url %q", rawURL))
	}

	req, err := httpclient.NewGetRequest(ctx, rawURL, nil)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, httpclient.ClassifyError(err, "media host")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ResponseError(resp, "media host")
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.cfg.MaxDownloadBytes
	if resp.ContentLength > limit {
		return nil, apperrors.NetworkFailure(
			fmt.Sprintf("media of %d bytes exceeds the %d byte limit", resp.ContentLength, limit), nil)
	}

	payload, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, apperrors.NetworkFailure("read media body", err)
	}
	if int64(len(payload)) > limit {
		return nil, apperrors.NetworkFailure(fmt.Sprintf("media exceeds the %d byte limit", limit), nil)
	}
	return payload, nil
}

func (c *Client) authHeader() http.Header {
	if c.cfg.APIKey == "" {
		return nil
	}
	return http.Header{"Authorization": {c.cfg.APIKey}}
}
