// Package errors defines the sentinel errors shared by the indexer and the
// searcher together with an HTTP-aware wrapper.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIngestion marks a corpus record that could not be parsed. It aborts
	// a build and nothing is published.
	ErrIngestion = errors.New("ingestion error")
	// ErrInvalidInput marks a caller mistake such as an unknown scoring mode.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInitialization marks index artifacts that are missing, unreadable
	// or inconsistent at load time.
	ErrInitialization = errors.New("initialization error")
	// ErrNotReady is returned when a query arrives before any snapshot has
	// been loaded.
	ErrNotReady      = errors.New("index not ready")
	ErrTimeout       = errors.New("request timeout")
	ErrUnavailable   = errors.New("service unavailable")
	ErrCacheDisabled = errors.New("cache disabled")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalidf builds an ErrInvalidInput AppError with a 400 status.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrCacheDisabled), errors.Is(err, ErrInitialization):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
