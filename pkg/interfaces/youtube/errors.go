package youtube

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingAPIKey is returned before any request is made without a key
var ErrMissingAPIKey = errors.New("youtube api key is required")

// Error reasons reported by the Data API
const (
	ReasonQuotaExceeded         = "quotaExceeded"
	ReasonDailyLimitExceeded    = "dailyLimitExceeded"
	ReasonRateLimitExceeded     = "rateLimitExceeded"
	ReasonUserRateLimitExceeded = "userRateLimitExceeded"
	ReasonKeyInvalid            = "keyInvalid"
	ReasonBadRequest            = "badRequest"
	ReasonBackendError          = "backendError"
)

// APIError is a non-2xx response from the Data API
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api error: status=%d reason=%s message=%s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube api error: status=%d message=%s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the request may succeed
func (e *APIError) Retryable() bool {
	switch e.Reason {
	case ReasonQuotaExceeded, ReasonDailyLimitExceeded, ReasonKeyInvalid:
		return false
	case ReasonRateLimitExceeded, ReasonUserRateLimitExceeded, ReasonBackendError:
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ConnectionError wraps transport failures. Its message never includes the
// request URL, which carries the API key.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("youtube api request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsQuotaError reports whether err is a quota or daily limit rejection
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason == ReasonQuotaExceeded || apiErr.Reason == ReasonDailyLimitExceeded
	}
	return false
}

// IsCredentialError reports whether err means the API key was rejected
func IsCredentialError(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason == ReasonKeyInvalid ||
			(apiErr.StatusCode == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key"))
	}
	return false
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
