package auth

import "errors"

// Configuration errors returned by NewServiceTokenSource.
var (
	// ErrMissingSigningKey is returned when the signing key is empty
	// after resolution.
	ErrMissingSigningKey = errors.New("auth: signing key is required")

	// ErrMissingIssuer is returned when no issuer is configured.
	ErrMissingIssuer = errors.New("auth: issuer is required")
)
