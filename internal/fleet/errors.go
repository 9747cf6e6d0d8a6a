// Package fleet provides an authenticated HTTP client for the Fleet
// device-management API with pagination support and error classification.
package fleet

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, fleet.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("fleet: bad request")
	ErrUnauthorized = errors.New("fleet: unauthorized")
	ErrForbidden    = errors.New("fleet: forbidden")
	ErrNotFound     = errors.New("fleet: not found")
	ErrThrottled    = errors.New("fleet: throttled")
	ErrServerError  = errors.New("fleet: server error")

	// ErrNoToken signals that no API token is configured. The engine treats
	// this as an intentional no-op, never as a failure.
	ErrNoToken = errors.New("fleet: no API token configured")
)

// APIError wraps a sentinel error with the HTTP status code and response
// body excerpt for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fleet: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
