package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secret references from the process environment.
//
// The reference is the variable name: "secretref:env:KNOWLEDGE_API_KEY"
// resolves to the value of $KNOWLEDGE_API_KEY. A variable that is unset
// is an error; set-but-empty is returned as-is and left to the resolver's
// strict mode to reject.
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve returns the value of the environment variable named by ref.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set", ref)
	}
	return value, nil
}

// Close is a no-op; the environment holds no resources.
func (p *EnvProvider) Close() error {
	return nil
}

// Ensure EnvProvider implements Provider
var _ Provider = (*EnvProvider)(nil)
