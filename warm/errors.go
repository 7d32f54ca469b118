package warm

import "errors"

var (
	// ErrNilKeyFunc indicates Config.Key was not provided.
	ErrNilKeyFunc = errors.New("warm: key func is required")

	// ErrNilFreshFunc indicates Config.Fresh was not provided.
	ErrNilFreshFunc = errors.New("warm: fresh func is required")

	// ErrNilRoomFunc indicates Config.HasRoom was not provided.
	ErrNilRoomFunc = errors.New("warm: has-room func is required")

	// ErrNilFetchFunc indicates Config.Fetch was not provided.
	ErrNilFetchFunc = errors.New("warm: fetch func is required")
)
