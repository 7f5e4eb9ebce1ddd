package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the platform answers 404 for a resource.
var ErrNotFound = errors.New("commerce: resource not found")

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("commerce: platform unavailable")

// APIError is a non-2xx answer from the commerce platform.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("commerce API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("commerce API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// isServerSide reports whether an error should count against the breaker.
func isServerSide(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
