// Package secret resolves secret references in configuration values.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider, EnvProvider)
//   - Resolving secret references in values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:env:KNOWLEDGE_API_KEY
//   - Inline use:  Bearer secretref:env:KNOWLEDGE_API_KEY
//
// The upstream client and the token source resolve their API keys and
// signing keys through this package, so credentials never sit in plain
// configuration.
package secret
