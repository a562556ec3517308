package api

import (
	"fmt"
	"net/http"

	"github.com/lamim/scripturai/pkg/models"
)

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// Unwrap maps the error onto the pipeline's error kinds so callers can use errors.Is
func (e *APIError) Unwrap() error {
	if e.Retryable {
		return models.ErrTransient
	}
	return models.ErrPermanent
}

// isStatusCodeRetryable reports rate limits and server errors
func isStatusCodeRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
