package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod is an HMAC JWT algorithm name.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

// Config configures the access token issuer.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `mapstructure:"secret"`
	// Algorithm defaults to HS256.
	Algorithm SigningMethod `mapstructure:"algorithm"`
	// AccessTokenTTL defaults to 30 minutes.
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = HS256
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 30 * time.Minute
	}
}

// Validate checks the secret and algorithm.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt: secret is required")
	}
	if len(c.Secret) < 16 {
		return errors.New("jwt: secret must be at least 16 bytes")
	}
	if c.signingMethod() == nil {
		return fmt.Errorf("jwt: unsupported algorithm %q", c.Algorithm)
	}
	return nil
}

func (c *Config) signingMethod() gojwt.SigningMethod {
	switch c.Algorithm {
	case HS256:
		return gojwt.SigningMethodHS256
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	}
	return nil
}
