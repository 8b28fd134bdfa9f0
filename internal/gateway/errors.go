package gateway

import (
	"errors"
	"fmt"
)

// ErrAuthFailed means the client-credentials exchange was rejected twice in a
// row. There is no point retrying with the same credentials.
var ErrAuthFailed = errors.New("gateway: credential exchange failed")

// RateLimitError means the upstream still returned 429 after the client-side
// spacing wait. The gateway surfaces it; retry policy belongs to the caller.
type RateLimitError struct {
	RetryAfter string // raw Retry-After header, may be empty
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return "gateway: rate limit exceeded (retry after " + e.RetryAfter + ")"
	}
	return "gateway: rate limit exceeded"
}

// UpstreamError is any non-2xx response other than 401 and 429.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway: upstream status %d: %s", e.Status, e.Body)
}

// NetworkError wraps a transport failure. Always considered retryable by
// callers, up to their own budget.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "gateway: network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may usefully retry the call.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var re *RateLimitError
	if errors.As(err, &re) {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status >= 500
	}
	return false
}
