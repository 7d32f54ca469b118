package secret

import "context"

// Provider fetches a secret value for a reference string. The ref is
// the portion after the provider name in "secretref:<provider>:<ref>",
// so its shape is provider-specific (an environment variable name for
// the env provider).
//
// Implementations must be safe for concurrent use and must never log
// resolved values.
type Provider interface {
	// Name is the identifier used in secret references.
	Name() string

	// Resolve returns the secret for ref.
	Resolve(ctx context.Context, ref string) (string, error)

	// Close releases any underlying connections.
	Close() error
}
