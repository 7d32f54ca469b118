package knowledge

import (
	"errors"
	"fmt"
	"time"
)

// Client configuration and request validation errors.
var (
	// ErrMissingBaseURL is returned when the client is built without a
	// base URL.
	ErrMissingBaseURL = errors.New("knowledge: base URL is required")

	// ErrEmptyTopic is returned when Fetch is called with a blank topic.
	ErrEmptyTopic = errors.New("knowledge: topic is required")
)

// Sentinel errors for upstream fetch outcomes. Match with errors.Is; the
// concrete *UpstreamError carries status and retry detail.
var (
	// ErrRateLimited is returned when the upstream rejects the call for
	// exceeding its rate budget.
	ErrRateLimited = errors.New("knowledge: upstream rate limited")

	// ErrNetwork is returned when the upstream cannot be reached or fails
	// at the transport level.
	ErrNetwork = errors.New("knowledge: upstream network failure")

	// ErrInvalidResponse is returned when the upstream responds with a
	// payload or status the client cannot interpret.
	ErrInvalidResponse = errors.New("knowledge: invalid upstream response")
)

// ErrorKind classifies an upstream failure.
type ErrorKind int

const (
	// KindNetwork covers transport failures and upstream unavailability.
	KindNetwork ErrorKind = iota

	// KindRateLimited covers explicit rate-limit rejections.
	KindRateLimited

	// KindInvalidResponse covers unexpected statuses and undecodable bodies.
	KindInvalidResponse
)

// String returns the kind as a lowercase label.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "network"
	}
}

// UpstreamError is a classified failure from the upstream knowledge service.
//
// The cache propagates these verbatim to every waiter on the affected key
// and never retries them internally; callers decide whether to back off.
type UpstreamError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Topic is the raw topic the fetch was for.
	Topic string

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// RetryAfter is the upstream-suggested backoff for rate limits (zero
	// when the upstream did not provide one).
	RetryAfter time.Duration

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("knowledge: fetch %q failed (%s)", e.Topic, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is maps the error kind onto the package sentinels so callers can use
// errors.Is without touching the concrete type.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	}
	return false
}

// NewRateLimited builds a rate-limit error with the upstream-suggested backoff.
func NewRateLimited(topic string, status int, retryAfter time.Duration) *UpstreamError {
	return &UpstreamError{Kind: KindRateLimited, Topic: topic, StatusCode: status, RetryAfter: retryAfter}
}

// NewNetworkError builds a transport-level error.
func NewNetworkError(topic string, status int, err error) *UpstreamError {
	return &UpstreamError{Kind: KindNetwork, Topic: topic, StatusCode: status, Err: err}
}

// NewInvalidResponse builds an invalid-response error.
func NewInvalidResponse(topic string, status int, err error) *UpstreamError {
	return &UpstreamError{Kind: KindInvalidResponse, Topic: topic, StatusCode: status, Err: err}
}
