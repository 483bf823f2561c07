package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/mediafeed/pkg/errors"
)

const maxErrorBody = 1 << 20

// StatusError is a non-2xx response whose body has already been consumed.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// upstreamErrorBody covers the error shapes returned by the media API.
type upstreamErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseError reads and closes the body of a non-2xx response and maps it to
// an AppError. The caller should only invoke it for error statuses.
func ResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.NetworkFailure(
			fmt.Sprintf("%s returned status %d", upstream, resp.StatusCode),
			fmt.Errorf("read error body: %w", err),
		)
	}
	return mapStatus(&StatusError{StatusCode: resp.StatusCode, Body: body}, upstream)
}

// ClassifyError maps any error returned by a Doer to an AppError. Status
// errors from the circuit breaker are mapped like ResponseError; an open
// breaker becomes ServiceUnavailable; everything else is a NetworkFailure.
func ClassifyError(err error, upstream string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return mapStatus(statusErr, upstream)
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrTooManyRequests):
		return apperrors.ServiceUnavailable(upstream+" circuit breaker open", err)
	default:
		return apperrors.NetworkFailure(upstream+" request failed", err)
	}
}

func mapStatus(cause *StatusError, upstream string) error {
	status := cause.StatusCode
	msg := fmt.Sprintf("%s returned status %d", upstream, status)
	if detail := upstreamDetail(cause.Body); detail != "" {
		msg += ": " + detail
	}

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: msg,
			Status:  http.StatusNotFound,
			Err:     errors.Join(apperrors.ErrNotFound, cause),
		}
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(msg, cause)
	default:
		return apperrors.NetworkFailure(msg, cause)
	}
}

// upstreamDetail extracts a short human-readable reason from an error body.
func upstreamDetail(body []byte) string {
	var parsed upstreamErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Message != "":
			return parsed.Message
		case parsed.Error != "":
			return parsed.Error
		case parsed.Code != "":
			return parsed.Code
		}
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
