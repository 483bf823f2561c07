package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/mediafeed/internal/domain"
	"github.com/utafrali/mediafeed/internal/layout"
	"github.com/utafrali/mediafeed/pkg/logger"
	"github.com/utafrali/mediafeed/pkg/pagination"
	"github.com/utafrali/mediafeed/pkg/tracing"
)

const tracerName = "github.com/utafrali/mediafeed/internal/feed"

var (
	// ErrRejected is returned when a next-page load is refused because a fetch
	// is already in flight or the collection is exhausted. Nothing changed.
	ErrRejected = errors.New("load rejected: fetch in flight or no more pages")

	// ErrSuperseded is returned when a fetch completed after a newer refresh
	// was issued. Its result was discarded.
	ErrSuperseded = errors.New("fetch superseded by a newer refresh")
)

// Fetcher loads one page of the remote collection. Implementations may retry
// internally; the controller only sees the final outcome.
type Fetcher interface {
	FetchPage(ctx context.Context, page, perPage int) ([]*domain.MediaItem, error)
}

// View is what a rendering layer consumes.
type View interface {
	CurrentColumns() layout.Columns
	IsLoading() bool
	LastError() error
	HasMorePages() bool
}

// Snapshot is a consistent copy of the controller's published state.
type Snapshot struct {
	SessionID    string
	Columns      layout.Columns
	ItemCount    int
	CurrentPage  int
	PerPage      int
	IsLoading    bool
	HasMorePages bool
	LastError    error
}

// Controller owns the authoritative item list of one feed session.
//
// All list and cursor mutations happen under mu; fetches run without it, so
// readers and a concurrent refresh are never blocked by the network. At most
// one fetch is authorized at a time; a refresh supersedes it and its late
// completion is dropped.
type Controller struct {
	mu       sync.Mutex
	fetcher  Fetcher
	balancer *layout.Balancer
	state    *pagination.State
	items    []*domain.MediaItem
	columns  layout.Columns
	lastErr  error
	session  string
	logger   *slog.Logger
}

// NewController creates a controller for a new feed session. No fetch is
// issued until Refresh or LoadNextPage is called.
func NewController(fetcher Fetcher, balancer *layout.Balancer, perPage int, log *slog.Logger) *Controller {
	session := uuid.New().String()
	return &Controller{
		fetcher:  fetcher,
		balancer: balancer,
		state:    pagination.New(perPage),
		columns:  balancer.Balance(nil),
		session:  session,
		logger:   log,
	}
}

// SessionID identifies the feed session.
func (c *Controller) SessionID() string {
	return c.session
}

// Refresh reloads page 1 and replaces the item list on success. It may be
// called at any time; an in-flight fetch is superseded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	ticket := c.state.RequestRefresh()
	c.mu.Unlock()

	return c.run(ctx, ticket)
}

// LoadNextPage fetches the page after the current one and appends it. It
// returns ErrRejected without fetching when CanLoadMore is false.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	c.mu.Lock()
	ticket, ok := c.state.RequestNextPage()
	c.mu.Unlock()

	if !ok {
		return ErrRejected
	}
	return c.run(ctx, ticket)
}

// LoadNextPageIfNeeded loads the next page only when anchor is the last known
// item, the trigger used by infinite scrolling. For any other anchor it does
// nothing and returns nil.
func (c *Controller) LoadNextPageIfNeeded(ctx context.Context, anchor *domain.MediaItem) error {
	c.mu.Lock()
	if anchor == nil || len(c.items) == 0 || c.items[len(c.items)-1].ID != anchor.ID {
		c.mu.Unlock()
		return nil
	}
	ticket, ok := c.state.RequestNextPage()
	c.mu.Unlock()

	if !ok {
		return ErrRejected
	}
	return c.run(ctx, ticket)
}

func (c *Controller) run(ctx context.Context, ticket pagination.Ticket) error {
	kind := "next"
	if ticket.Refresh {
		kind = "refresh"
	}

	ctx = logger.WithSessionID(ctx, c.session)
	ctx, end := tracing.StartOperation(ctx, tracerName, "feed.fetch_page",
		attribute.String("feed.kind", kind),
		attribute.Int("feed.page", ticket.Page),
		attribute.Int("feed.per_page", ticket.PerPage),
		attribute.Int64("feed.generation", int64(ticket.Generation)),
	)
	items, err := c.fetch(ctx, ticket)
	end(err)

	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.WithContext(ctx, c.logger).With(
		slog.String("kind", kind),
		slog.Int("page", ticket.Page),
		slog.Uint64("generation", ticket.Generation),
	)

	if err != nil {
		if !c.state.CompleteFailure(ticket) {
			pageLoadsTotal.WithLabelValues(kind, "superseded").Inc()
			log.DebugContext(ctx, "discarding failure of superseded fetch", slog.String("error", err.Error()))
			return ErrSuperseded
		}
		c.lastErr = err
		pageLoadsTotal.WithLabelValues(kind, "failure").Inc()
		log.WarnContext(ctx, "feed page fetch failed", slog.String("error", err.Error()))
		return fmt.Errorf("fetch page %d: %w", ticket.Page, err)
	}

	if !c.state.CompleteSuccess(ticket, len(items), ticket.PerPage) {
		pageLoadsTotal.WithLabelValues(kind, "superseded").Inc()
		log.DebugContext(ctx, "discarding result of superseded fetch", slog.Int("items", len(items)))
		return ErrSuperseded
	}

	if ticket.Refresh {
		c.items = append(make([]*domain.MediaItem, 0, len(items)), items...)
	} else {
		c.items = append(c.items, items...)
	}
	c.columns = c.balancer.Balance(c.items)
	c.lastErr = nil

	pageLoadsTotal.WithLabelValues(kind, "success").Inc()
	feedItems.WithLabelValues(c.session).Set(float64(len(c.items)))
	log.InfoContext(ctx, "feed page loaded",
		slog.Int("items", len(items)),
		slog.Int("total_items", len(c.items)),
		slog.Bool("has_more_pages", c.state.HasMorePages()),
	)
	return nil
}

// fetch calls the fetcher and converts a panic into an error so the cursor is
// always returned to Idle.
func (c *Controller) fetch(ctx context.Context, ticket pagination.Ticket) (items []*domain.MediaItem, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetcher panic: %v", rec)
		}
	}()
	return c.fetcher.FetchPage(ctx, ticket.Page, ticket.PerPage)
}

// CurrentColumns returns the last published column assignment. The result is
// never mutated afterwards and may be read without further locking.
func (c *Controller) CurrentColumns() layout.Columns {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.columns
}

// IsLoading reports whether a fetch is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsLoading()
}

// CanLoadMore reports whether LoadNextPage would start a fetch right now.
func (c *Controller) CanLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CanLoadMore()
}

// LastError returns the error of the most recent failed fetch, cleared by the
// next successful one.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// HasMorePages reports whether the collection may have further pages.
func (c *Controller) HasMorePages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.HasMorePages()
}

// Items returns a copy of the authoritative list.
func (c *Controller) Items() []*domain.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.MediaItem(nil), c.items...)
}

// Item looks up a loaded item by ID.
func (c *Controller) Item(id int64) (*domain.MediaItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// Snapshot returns the published state in one consistent read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:    c.session,
		Columns:      c.columns,
		ItemCount:    len(c.items),
		CurrentPage:  c.state.CurrentPage(),
		PerPage:      c.state.PerPage(),
		IsLoading:    c.state.IsLoading(),
		HasMorePages: c.state.HasMorePages(),
		LastError:    c.lastErr,
	}
}

var _ View = (*Controller)(nil)
