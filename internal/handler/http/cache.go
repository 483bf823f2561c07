package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/mediafeed/internal/mediacache"
	"github.com/utafrali/mediafeed/pkg/httputil"
)

// CacheService exposes cache occupancy and the manual flush.
type CacheService interface {
	Stats() mediacache.Stats
	Clear()
}

// CacheHandler handles HTTP requests for the media cache endpoints.
type CacheHandler struct {
	cache  CacheService
	logger *slog.Logger
}

// NewCacheHandler creates a new cache HTTP handler.
func NewCacheHandler(cache CacheService, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// GetStats handles GET /api/v1/cache/stats.
func (h *CacheHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.cache.Stats()})
}

// Clear handles DELETE /api/v1/cache. Clients send it on memory pressure.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}
