package oidc

import (
	"fmt"
	"time"
)

// Config configures ID token verification for federated login.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Issuer is the provider's issuer URL; discovery is read from
	// <Issuer>/.well-known/openid-configuration.
	Issuer string `mapstructure:"issuer"`

	// ClientID is the expected "aud" claim.
	ClientID string `mapstructure:"client_id"`

	// SupportedSigningAlgs restricts ID token algorithms (default: RS256).
	SupportedSigningAlgs []string `mapstructure:"supported_signing_algs"`

	JWKSCacheDuration time.Duration `mapstructure:"jwks_cache_duration"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`

	// Leeway tolerates clock skew on exp/iat/nbf.
	Leeway time.Duration `mapstructure:"leeway"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.SupportedSigningAlgs) == 0 {
		c.SupportedSigningAlgs = []string{"RS256"}
	}
	if c.JWKSCacheDuration == 0 {
		c.JWKSCacheDuration = time.Hour
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.Leeway == 0 {
		c.Leeway = 30 * time.Second
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	for _, alg := range c.SupportedSigningAlgs {
		switch alg {
		case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512":
		default:
			return fmt.Errorf("unsupported signing algorithm %q", alg)
		}
	}
	return nil
}
