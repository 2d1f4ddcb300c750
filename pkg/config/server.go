package config

import (
	"fmt"
	"net/url"
)

// ServerConfig configures the inspection HTTP server. The server is
// opt-in: the orchestrator runs fine without it.
type ServerConfig struct {
	// Enabled starts the server alongside the orchestrator.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Start the inspection server"`

	// Host to bind to.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Bind address,default=127.0.0.1"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Listen port,default=8080"`

	// Auth configures request authentication. Nil means open access.
	Auth *ServerAuthConfig `yaml:"auth,omitempty" json:"auth,omitempty" jsonschema:"title=Auth,description=Request authentication"`
}

// ServerAuthConfig configures inspection server authentication. Either a
// static bearer token or JWT validation against a JWKS endpoint.
type ServerAuthConfig struct {
	// Enabled turns on authentication.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Token is a static bearer token. Takes precedence over JWT settings.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	// JWKSURL is the JSON Web Key Set endpoint for JWT validation.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// Issuer is the expected "iss" claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience is the expected "aud" claim (optional).
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	return nil
}

// Validate checks the auth configuration.
func (c *ServerAuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" && c.JWKSURL == "" {
		return fmt.Errorf("enabled auth requires token or jwks_url")
	}
	if c.JWKSURL != "" {
		if _, err := url.Parse(c.JWKSURL); err != nil {
			return fmt.Errorf("invalid jwks_url: %w", err)
		}
		if c.Issuer == "" {
			return fmt.Errorf("jwks_url requires issuer")
		}
	}
	return nil
}

// Address returns the HTTP server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
