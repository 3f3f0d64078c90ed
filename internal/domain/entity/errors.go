package entity

import (
	"errors"
)

// Error taxonomy shared across layers. Producers wrap these with
// fmt.Errorf("...: %w", ...) and callers match with errors.Is.
var (
	// ErrAuth means the credential exchange with the upstream identity
	// provider failed. Hard failure for the current operation, not retried
	// within the same scheduler cycle.
	ErrAuth = errors.New("auth failure")

	// ErrNotFound covers both "vehicle unknown upstream" and "registration
	// not subscribed locally". Surfaced as 404, never logged as an error.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is an upstream 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstream is any other upstream 4xx/5xx, carrying the upstream
	// code and message in the wrap text.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout is a request that exceeded the fixed per-call timeout.
	// Handled identically to ErrUpstream everywhere.
	ErrTimeout = errors.New("request timeout")

	// ErrValidation is malformed caller input, surfaced as 400 before any
	// network or store access.
	ErrValidation = errors.New("validation failure")

	// ErrEndpointGone is the push relay reporting the endpoint permanently
	// invalid (404/410). The subscription is deactivated, not retried.
	ErrEndpointGone = errors.New("push endpoint gone")

	// ErrPersistence is the store being unavailable after connect retries.
	ErrPersistence = errors.New("persistence unavailable")
)

// ErrorKind maps an error to the stable kind string used in API error
// bodies and metrics labels.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "AUTH_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrEndpointGone):
		return "ENDPOINT_GONE"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_ERROR"
	case errors.Is(err, ErrUpstream):
		return "UPSTREAM_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
