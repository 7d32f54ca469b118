package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrRateLimitExceeded is returned when a token does not free up
	// within the limiter's wait budget.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when every slot stays claimed for the
	// full acquire wait.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation misses its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
