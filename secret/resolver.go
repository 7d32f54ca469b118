package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// secretRefPattern matches inline references of the form secretref:<provider>:<ref>.
// Provider names cannot contain colons; refs run to the next whitespace.
var secretRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

// Resolver turns configuration values into usable secrets.
//
// A value is processed in two steps: strict environment expansion first,
// then any "secretref:<provider>:<ref>" references are swapped for the
// value the named provider returns. Values without references pass
// through expansion unchanged.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver backed by the given providers. When
// strict is true, a provider returning an empty secret is an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any existing provider with the
// same name.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue expands environment variables in value and resolves any
// secret references through the registered providers.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	// A full reference may carry colons in the ref portion, so parse it
	// before falling back to inline substitution.
	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		return r.fetch(ctx, providerName, ref)
	}
	return r.substituteRefs(ctx, expanded)
}

// ResolveMap resolves every value of input, keyed errors included.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef splits a value of the form:
//
//	secretref:<provider>:<ref>
//
// ok reports whether value is such a reference.
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	const prefix = "secretref:"
	if !strings.HasPrefix(value, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(value, prefix)
	i := strings.Index(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// substituteRefs replaces each inline reference in value. The first
// provider failure aborts the whole value.
func (r *Resolver) substituteRefs(ctx context.Context, value string) (string, error) {
	var failure error
	out := secretRefPattern.ReplaceAllStringFunc(value, func(m string) string {
		if failure != nil {
			return m
		}
		groups := secretRefPattern.FindStringSubmatch(m)
		resolved, err := r.fetch(ctx, groups[1], groups[2])
		if err != nil {
			failure = err
			return m
		}
		return resolved
	})
	if failure != nil {
		return "", failure
	}
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, providerName string, ref string) (string, error) {
	if strings.TrimSpace(providerName) == "" {
		return "", errors.New("secret provider name is required")
	}
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("secret ref is required")
	}
	provider := r.providers[providerName]
	if provider == nil {
		return "", fmt.Errorf("no secret provider registered for %q", providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q via %q: %w", ref, providerName, err)
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("secret provider %q returned an empty value for %q", providerName, ref)
	}
	return resolved, nil
}
