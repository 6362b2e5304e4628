package notion

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes returned by Client calls.
//
// Every API failure is an *APIError that unwraps to exactly one of these,
// so callers can branch with errors.Is:
//
//	if errors.Is(err, notion.ErrNotFound) {
//	    // the page was deleted or never shared with the integration
//	}
var (
	// ErrNotFound is returned when the entity does not exist or the
	// integration cannot see it.
	ErrNotFound = errors.New("notion entity not found")

	// ErrPermission is returned for authentication and authorization failures.
	ErrPermission = errors.New("notion permission denied")

	// ErrRateLimited is returned when requests are throttled.
	ErrRateLimited = errors.New("notion rate limit exceeded")

	// ErrTransient is returned for server errors, conflicts and network failures.
	ErrTransient = errors.New("notion transient error")

	// ErrInvalidRequest is returned when the API rejects the request body.
	ErrInvalidRequest = errors.New("notion rejected request")
)

// APIError describes a failed API call.
type APIError struct {
	Method  string
	Path    string
	Status  int // 0 for network failures
	Code    string
	Message string

	kind error
	// RetryAfter is the server's requested delay in seconds, if any.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.kind, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// classify maps an HTTP status and Notion error code to an error class.
func classify(status int, code string) error {
	switch code {
	case "object_not_found":
		return ErrNotFound
	case "unauthorized", "restricted_resource":
		return ErrPermission
	case "rate_limited":
		return ErrRateLimited
	case "conflict_error", "internal_server_error", "service_unavailable", "database_connection_unavailable", "gateway_timeout":
		return ErrTransient
	case "validation_error", "invalid_json", "invalid_request_url", "invalid_request", "missing_version":
		return ErrInvalidRequest
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusConflict || status >= 500:
		return ErrTransient
	default:
		return ErrInvalidRequest
	}
}

// IsRetryable returns true if the error is likely to succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
