package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/mediafeed/internal/domain"
	"github.com/utafrali/mediafeed/internal/feed"
	"github.com/utafrali/mediafeed/internal/layout"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/httputil"
)

// FeedService is the part of feed.Controller the HTTP layer drives.
type FeedService interface {
	Snapshot() feed.Snapshot
	Refresh(ctx context.Context) error
	LoadNextPage(ctx context.Context) error
	LoadNextPageIfNeeded(ctx context.Context, anchor *domain.MediaItem) error
	Item(id int64) (*domain.MediaItem, bool)
}

// FeedHandler handles HTTP requests for the feed endpoints.
type FeedHandler struct {
	feed         FeedService
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewFeedHandler creates a new feed HTTP handler. Fetches triggered through
// it are bounded by fetchTimeout and are not canceled when the client goes
// away, since their result is shared by every reader of the feed.
func NewFeedHandler(svc FeedService, fetchTimeout time.Duration, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:         svc,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// --- Response DTOs ---

type feedResponse struct {
	SessionID    string                `json:"session_id"`
	Page         int                   `json:"page"`
	PerPage      int                   `json:"per_page"`
	ItemCount    int                   `json:"item_count"`
	IsLoading    bool                  `json:"is_loading"`
	HasMorePages bool                  `json:"has_more_pages"`
	LastError    *string               `json:"last_error"`
	Columns      [][]*domain.MediaItem `json:"columns"`
}

func newFeedResponse(s feed.Snapshot) feedResponse {
	resp := feedResponse{
		SessionID:    s.SessionID,
		Page:         s.CurrentPage,
		PerPage:      s.PerPage,
		ItemCount:    s.ItemCount,
		IsLoading:    s.IsLoading,
		HasMorePages: s.HasMorePages,
		Columns:      columns(s.Columns),
	}
	if s.LastError != nil {
		msg := apperrors.Message(s.LastError)
		resp.LastError = &msg
	}
	return resp
}

// columns never returns a nil column so clients always see N arrays.
func columns(c layout.Columns) [][]*domain.MediaItem {
	out := make([][]*domain.MediaItem, len(c))
	for i, col := range c {
		if col == nil {
			col = []*domain.MediaItem{}
		}
		out[i] = col
	}
	return out
}

// --- Handlers ---

// GetFeed handles GET /api/v1/feed.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newFeedResponse(h.feed.Snapshot())})
}

// Refresh handles POST /api/v1/feed/refresh.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.feed.Refresh)
}

// LoadNextPage handles POST /api/v1/feed/next.
func (h *FeedHandler) LoadNextPage(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.feed.LoadNextPage)
}

// LoadNextPageIfNeeded handles POST /api/v1/feed/next-if-needed?anchor_id=ID.
// Any anchor other than the last loaded item is a no-op.
func (h *FeedHandler) LoadNextPageIfNeeded(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "anchor_id", r.URL.Query().Get("anchor_id"))
	if !ok {
		return
	}
	h.load(w, r, func(ctx context.Context) error {
		return h.feed.LoadNextPageIfNeeded(ctx, &domain.MediaItem{ID: id})
	})
}

func (h *FeedHandler) load(w http.ResponseWriter, r *http.Request, op func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.fetchTimeout)
	defer cancel()

	err := op(ctx)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newFeedResponse(h.feed.Snapshot())})
	case errors.Is(err, feed.ErrRejected):
		writeConflict(w, "LOAD_REJECTED", "a page is already loading or the feed is exhausted")
	case errors.Is(err, feed.ErrSuperseded):
		writeConflict(w, "SUPERSEDED", "the load was superseded by a newer refresh")
	default:
		httputil.WriteError(w, r, err, h.logger)
	}
}

func writeConflict(w http.ResponseWriter, code, message string) {
	httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
