// Package auth guards the inspection server. Requests carry a bearer
// token that is either a pre-shared static token or a JWT validated
// against the identity provider's JWKS endpoint, per server config.
package auth

import (
	"context"
	"fmt"

	"github.com/batonlabs/baton/pkg/config"
)

// Claims is the identity extracted from a validated token.
type Claims struct {
	Subject string         `json:"sub,omitempty"`
	Email   string         `json:"email,omitempty"`
	Role    string         `json:"role,omitempty"`
	Custom  map[string]any `json:"-"`
}

// Validator checks a single bearer token and returns its claims.
type Validator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// FromConfig builds the validator the config selects. It returns nil
// when auth is disabled. A static token takes precedence over JWKS.
func FromConfig(ctx context.Context, cfg *config.ServerAuthConfig) (Validator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.Token != "" {
		return NewStaticValidator(cfg.Token)
	}
	if cfg.JWKSURL != "" {
		return NewJWTValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	}
	return nil, fmt.Errorf("auth enabled but neither token nor jwks_url configured")
}

type claimsKey struct{}

// WithClaims attaches validated claims to a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims Middleware attached, or nil when the
// request was not authenticated.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
