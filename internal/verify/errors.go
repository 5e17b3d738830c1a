package verify

import (
	"errors"
	"fmt"
)

// Sentinel errors - Verification
var (
	ErrNoAPIKey      = errors.New("verify: explorer API key is not configured")
	ErrNoSource      = errors.New("verify: artifact has no source or compiler version")
	ErrUnavailable   = errors.New("verify: explorer is unavailable")
	ErrRejected      = errors.New("verify: verification failed")
	ErrRateLimited   = errors.New("verify: rate limited")
	ErrStillPending  = errors.New("verify: verification still pending")
	errNotIndexedYet = errors.New("verify: contract not indexed yet")
)

// APIError is an explorer response with status "0".
type APIError struct {
	StatusCode int
	Message    string
	Result     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("explorer error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("explorer error (HTTP %d): %s: %s", e.StatusCode, e.Message, e.Result)
}

// Is maps HTTP status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return errors.Is(target, ErrRateLimited)
	case e.StatusCode >= 500:
		return errors.Is(target, ErrUnavailable)
	default:
		return false
	}
}
