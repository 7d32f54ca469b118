package cache

import (
	"fmt"
	"time"

	"github.com/wtthornton/TappMCP-sub003/health"
)

// Config configures a Manager. The zero value is usable: New applies the
// documented defaults and validates the result.
type Config struct {
	// DefaultTTL applies to entries stored without an explicit TTL.
	// Default: 6h
	DefaultTTL time.Duration

	// MaxTTL caps explicit TTLs.
	// Default: 24h
	MaxTTL time.Duration

	// MaxEntries bounds the in-memory store by entry count.
	// Negative disables the bound; zero takes the default.
	// Default: 1024
	MaxEntries int

	// MaxBytes bounds the in-memory store by approximate bytes.
	// Negative disables the bound; zero takes the default.
	// Default: 64 MiB
	MaxBytes int64

	// HotAccessThreshold is the access count that protects an entry from
	// eviction while colder entries remain.
	// Default: 3
	HotAccessThreshold int64

	// FetchTimeout bounds a demand-path upstream fetch.
	// Default: 5s
	FetchTimeout time.Duration

	// WarmInterval is the cadence of background warming cycles.
	// Default: 5m
	WarmInterval time.Duration

	// WarmTimeout bounds a single warming fetch. It is shorter than
	// FetchTimeout so background work yields to demand traffic.
	// Default: 3s
	WarmTimeout time.Duration

	// WarmBatchSize is the number of topics a cycle fetches concurrently
	// per batch.
	// Default: 8
	WarmBatchSize int

	// WarmRate is the warming fetch budget in fetches per second.
	// Default: 2
	WarmRate float64

	// WarmBurst is the warming rate limiter's burst size.
	// Default: WarmBatchSize
	WarmBurst int

	// SweepInterval is the cadence of expired-entry sweeps.
	// Default: 1m
	SweepInterval time.Duration

	// SampleInterval is the cadence of health samples.
	// Default: 15s
	SampleInterval time.Duration

	// Health holds degradation thresholds. Zero fields take the defaults
	// documented on health.Thresholds.
	Health health.Thresholds
}

// DefaultConfig returns the fully-populated default configuration.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// withDefaults fills unset fields with the documented defaults.
func (c Config) withDefaults() Config {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 6 * time.Hour
	}
	if c.MaxTTL == 0 {
		c.MaxTTL = 24 * time.Hour
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 1024
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 64 << 20
	}
	if c.HotAccessThreshold <= 0 {
		c.HotAccessThreshold = 3
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.WarmInterval == 0 {
		c.WarmInterval = 5 * time.Minute
	}
	if c.WarmTimeout == 0 {
		c.WarmTimeout = 3 * time.Second
	}
	if c.WarmBatchSize <= 0 {
		c.WarmBatchSize = 8
	}
	if c.WarmRate == 0 {
		c.WarmRate = 2
	}
	if c.WarmBurst <= 0 {
		c.WarmBurst = c.WarmBatchSize
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = 15 * time.Second
	}
	return c
}

// Validate checks field ranges after defaults are applied.
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default ttl %v: %w", c.DefaultTTL, ErrInvalidTTL)
	}
	if c.MaxTTL < c.DefaultTTL {
		return fmt.Errorf("max ttl %v below default ttl %v: %w", c.MaxTTL, c.DefaultTTL, ErrInvalidTTL)
	}
	if c.FetchTimeout < 0 || c.WarmTimeout < 0 {
		return fmt.Errorf("fetch timeouts: %w", ErrInvalidDuration)
	}
	if c.WarmInterval < 0 || c.SweepInterval < 0 || c.SampleInterval < 0 {
		return fmt.Errorf("background intervals: %w", ErrInvalidDuration)
	}
	if c.WarmRate < 0 {
		return fmt.Errorf("warm rate %v: %w", c.WarmRate, ErrInvalidRate)
	}
	return nil
}
