package cache

import "time"

// Policy bounds entry lifetimes. External knowledge drifts, so the
// defaults keep entries for hours, not days.
type Policy struct {
	// DefaultTTL applies when the caller requests no TTL.
	// Default: 6h
	DefaultTTL time.Duration

	// MaxTTL caps any requested TTL.
	// Default: 24h
	MaxTTL time.Duration
}

// DefaultPolicy returns the standard lifetime bounds.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 6 * time.Hour,
		MaxTTL:     24 * time.Hour,
	}
}

// EffectiveTTL resolves a requested TTL against the policy: zero or negative
// requests take the default, and anything above MaxTTL clamps down.
func (p Policy) EffectiveTTL(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = p.DefaultTTL
	}
	if p.MaxTTL > 0 && requested > p.MaxTTL {
		requested = p.MaxTTL
	}
	return requested
}
