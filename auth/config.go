package auth

import (
	"fmt"
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc"
	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
)

// Config holds all authentication configuration.
//
//	auth:
//	  jwt:
//	    secret: "..."
//	    algorithm: HS256
//	    access_token_ttl: 30m
//	  refresh_token_ttl: 720h
//	  password:
//	    algorithm: argon2id
//	  oidc:
//	    enabled: false
type Config struct {
	JWT             jwt.Config      `mapstructure:"jwt"`
	RefreshTokenTTL time.Duration   `mapstructure:"refresh_token_ttl"`
	Password        password.Config `mapstructure:"password"`
	OIDC            oidc.Config     `mapstructure:"oidc"`
}

// ApplyDefaults sets defaults on every sub-configuration.
func (c *Config) ApplyDefaults() {
	c.JWT.ApplyDefaults()
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	c.Password.ApplyDefaults()
	c.OIDC.ApplyDefaults()
}

// Validate checks every sub-configuration.
func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("auth.jwt: %w", err)
	}
	if c.RefreshTokenTTL < c.JWT.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl (%s) must not be shorter than the access token ttl (%s)", c.RefreshTokenTTL, c.JWT.AccessTokenTTL)
	}
	if err := c.Password.Validate(); err != nil {
		return fmt.Errorf("auth.password: %w", err)
	}
	if err := c.OIDC.Validate(); err != nil {
		return fmt.Errorf("auth.oidc: %w", err)
	}
	return nil
}

// Describe returns a one-line summary for the startup log.
func (c *Config) Describe() string {
	line := fmt.Sprintf("JWT(%s) access=%s refresh=%s password=%s",
		c.JWT.Algorithm, c.JWT.AccessTokenTTL, c.RefreshTokenTTL, c.Password.Algorithm)
	if c.OIDC.Enabled {
		line += fmt.Sprintf(" OIDC(%s)", c.OIDC.Issuer)
	}
	return line
}
