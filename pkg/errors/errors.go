package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrNetworkFailure = errors.New("network failure")
	ErrDecodeFailure  = errors.New("decode failure")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error, used when an upstream is shedding load
// or a circuit breaker is open.
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServiceUnavail, err),
	}
}

// NetworkFailure creates a 502 error for a failed upstream fetch. The cause is
// kept for errors.Is/As; ErrNetworkFailure always matches.
func NetworkFailure(message string, cause error) *AppError {
	return &AppError{
		Code:    "NETWORK_FAILURE",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     errors.Join(ErrNetworkFailure, cause),
	}
}

// DecodeFailure creates a 502 error for an upstream payload that could not be
// decoded into domain values.
func DecodeFailure(message string, cause error) *AppError {
	return &AppError{
		Code:    "DECODE_FAILURE",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     errors.Join(ErrDecodeFailure, cause),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Message returns the human-readable message for err. AppErrors yield their
// Message field; anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNetworkFailure), errors.Is(err, ErrDecodeFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
