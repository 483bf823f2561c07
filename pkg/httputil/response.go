package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/logger"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope for err. AppErrors keep their code,
// message and status. Upstream failures are logged at warn level and
// unclassified errors at error level, using the request-scoped logger when
// the RequestLogger middleware is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, message, status = appErr.Code, appErr.Message, appErr.Status
	}

	switch {
	case status >= http.StatusInternalServerError && appErr == nil:
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	case status >= http.StatusInternalServerError:
		l.WarnContext(r.Context(), "request failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

// WriteBytes serves payload with a sniffed content type. Range and
// conditional requests are handled by http.ServeContent.
func WriteBytes(w http.ResponseWriter, r *http.Request, name string, payload []byte, maxAge time.Duration) {
	w.Header().Set("Content-Type", http.DetectContentType(payload))
	if maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(payload))
}

// ParseID parses a positive integer path or query parameter. On failure it
// writes a 400 response and returns false, signaling the caller to return.
func ParseID(w http.ResponseWriter, name, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid " + name + ": " + param,
			},
		})
		return 0, false
	}
	return id, true
}
