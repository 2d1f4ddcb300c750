package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// jwksRefreshInterval bounds how often the key set is re-fetched, so
// provider key rotation is picked up without a fetch per request.
const jwksRefreshInterval = 15 * time.Minute

// JWTValidator validates JWTs against a provider's JWKS endpoint. The
// key set is cached and refreshed in the background for the lifetime
// of the context passed to NewJWTValidator.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator fetches the key set once up front, failing fast on a
// bad URL or unreachable provider, and keeps it refreshed thereafter.
// Audience is optional; issuer is always enforced.
func NewJWTValidator(ctx context.Context, jwksURL, issuer, audience string) (*JWTValidator, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("jwks_url cannot be empty")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer cannot be empty")
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(jwksRefreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS url: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Validate checks signature, expiry, issuer and, when configured,
// audience, then extracts the claims.
func (v *JWTValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{
		Subject: parsed.Subject(),
		Custom:  make(map[string]any),
	}
	if email, ok := parsed.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if role, ok := parsed.Get("role"); ok {
		claims.Role, _ = role.(string)
	}
	for key, value := range parsed.PrivateClaims() {
		if key == "email" || key == "role" {
			continue
		}
		claims.Custom[key] = value
	}
	return claims, nil
}
