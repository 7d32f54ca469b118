package dedup

import "errors"

var (
	// ErrFetchTimeout indicates the flight exceeded its fetch timeout.
	// All callers waiting on the flight receive it.
	ErrFetchTimeout = errors.New("dedup: fetch timed out")

	// ErrNilFetch indicates Fetch was called without a fetch function.
	ErrNilFetch = errors.New("dedup: fetch function is nil")

	// ErrNilResult indicates the fetch function returned neither a result
	// nor an error.
	ErrNilResult = errors.New("dedup: fetch returned nil result")
)
