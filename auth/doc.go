// Package auth mints service-to-service tokens for the upstream client.
//
// ServiceTokenSource produces short-lived HS256 tokens with standard
// registered claims and caches the current token until it nears expiry,
// so the signing cost is paid once per TTL rather than once per request.
// StaticTokenSource adapts a pre-issued token to the same interface.
//
// Basic usage:
//
//	tokens, err := auth.NewServiceTokenSource(ctx, auth.TokenConfig{
//		SigningKey: "secretref:env:KNOWLEDGE_SIGNING_KEY",
//		Issuer:     "knowcache",
//		Audience:   "knowledge-service",
//	})
//	if err != nil {
//		return err
//	}
//	client, err := knowledge.NewClient(ctx, knowledge.ClientConfig{
//		BaseURL: "${KNOWLEDGE_URL}",
//		Tokens:  tokens,
//	})
package auth
