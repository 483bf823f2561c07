package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/mediafeed/internal/domain"
	"github.com/utafrali/mediafeed/internal/loader"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/httputil"
)

// MediaLoader resolves the payload a grid cell renders.
type MediaLoader interface {
	LoadItem(ctx context.Context, item *domain.MediaItem) (*loader.Result, error)
}

// SourceHeader reports which cache level served a media payload.
const SourceHeader = "X-Media-Source"

// MediaHandler serves media bytes for loaded feed items.
type MediaHandler struct {
	feed   FeedService
	loader MediaLoader
	maxAge time.Duration
	logger *slog.Logger
}

// NewMediaHandler creates a new media HTTP handler.
func NewMediaHandler(svc FeedService, l MediaLoader, maxAge time.Duration, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		feed:   svc,
		loader: l,
		maxAge: maxAge,
		logger: logger,
	}
}

// GetMedia handles GET /api/v1/media/{id}.
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "id")
	id, ok := httputil.ParseID(w, "media id", param)
	if !ok {
		return
	}

	item, found := h.feed.Item(id)
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("media item", param), h.logger)
		return
	}

	res, err := h.loader.LoadItem(r.Context(), item)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set(SourceHeader, string(res.Source))
	w.Header().Set("X-Media-Pool", res.Pool.String())
	httputil.WriteBytes(w, r, strconv.FormatInt(id, 10), res.Payload, h.maxAge)
}
