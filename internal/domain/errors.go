package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface keeps handler error mapping extensible.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// MissingCredentialError indicates no usable API key could be resolved for
// the chosen provider. It is raised before any network call is made.
type MissingCredentialError struct {
	Provider string // human-readable provider label, e.g. "Gemini"
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key not configured. Add your key in AI settings.", e.Provider)
}

func (e *MissingCredentialError) StatusCode() int { return http.StatusBadRequest }

// UpstreamError indicates a non-2xx response from a model backend. It
// carries the backend's HTTP status and response body verbatim so the
// failure can be surfaced to the caller as-is.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string

	// RetryAfter holds the raw Retry-After header when the backend
	// sent one; the messages-family retry policy consumes it.
	RetryAfter string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.Status, e.Body)
}

// EmptyResponseError indicates the backend returned 200 but no usable
// candidate or choice.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("no response from %s", e.Provider)
}
