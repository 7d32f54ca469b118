package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wtthornton/TappMCP-sub003/knowledge"
	"github.com/wtthornton/TappMCP-sub003/secret"
)

// TokenConfig configures the service token source.
type TokenConfig struct {
	// SigningKey is the HS256 secret shared with the upstream. Supports
	// ${VAR} expansion and secretref resolution. Required.
	SigningKey string

	// Issuer is the iss claim identifying this service. Required.
	Issuer string

	// Audience is the aud claim naming the upstream. Optional.
	Audience string

	// Subject is the sub claim.
	// Default: Issuer
	Subject string

	// TTL is the lifetime of each minted token.
	// Default: 5m
	TTL time.Duration

	// RefreshSkew re-mints a cached token this long before it expires so
	// a token is never presented mid-flight with no validity left.
	// Default: 30s
	RefreshSkew time.Duration

	// Secrets resolves references in SigningKey.
	// Default: a strict resolver with the env provider registered.
	Secrets *secret.Resolver
}

// ServiceTokenSource mints short-lived HS256 service tokens and caches the
// current one until it approaches expiry.
//
// Every minted token carries iss, sub, exp, iat and a uuid jti; aud is
// included when configured. Safe for concurrent use.
type ServiceTokenSource struct {
	cfg TokenConfig
	key []byte

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewServiceTokenSource creates a token source. Secret references in the
// signing key are resolved once, here; ctx bounds that resolution.
func NewServiceTokenSource(ctx context.Context, cfg TokenConfig) (*ServiceTokenSource, error) {
	if cfg.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	if cfg.Subject == "" {
		cfg.Subject = cfg.Issuer
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = 30 * time.Second
	}
	if cfg.RefreshSkew >= cfg.TTL {
		return nil, fmt.Errorf("auth: refresh skew %v must be below ttl %v", cfg.RefreshSkew, cfg.TTL)
	}

	resolver := cfg.Secrets
	if resolver == nil {
		resolver = secret.NewResolver(true, secret.NewEnvProvider())
	}
	key, err := resolver.ResolveValue(ctx, cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve signing key: %w", err)
	}
	if key == "" {
		return nil, ErrMissingSigningKey
	}

	return &ServiceTokenSource{cfg: cfg, key: []byte(key)}, nil
}

// Token returns the cached token, minting a fresh one when the current
// token is absent or inside the refresh skew.
func (s *ServiceTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.token != "" && now.Before(s.expiry.Add(-s.cfg.RefreshSkew)) {
		return s.token, nil
	}

	expiry := now.Add(s.cfg.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   s.cfg.Subject,
		ExpiresAt: jwt.NewNumericDate(expiry),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}

	s.token = signed
	s.expiry = expiry
	return signed, nil
}

// StaticTokenSource returns a fixed, externally issued token.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a source that always returns token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token returns the fixed token.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

// Ensure both sources satisfy the client's token boundary
var (
	_ knowledge.TokenSource = (*ServiceTokenSource)(nil)
	_ knowledge.TokenSource = (*StaticTokenSource)(nil)
)
