package health

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSource indicates the monitor was constructed without a counter source.
	ErrNilSource = errors.New("health: counter source is nil")

	// ErrInvalidThresholds indicates a threshold is outside its valid range.
	ErrInvalidThresholds = errors.New("health: invalid thresholds")
)

func errRange(name string, v float64) error {
	return fmt.Errorf("%w: %s %v out of range", ErrInvalidThresholds, name, v)
}
