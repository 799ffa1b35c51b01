package moodle

import (
	"errors"
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/httpclient"
	"github.com/guiqiqi/itmo-moodle-agent/resilience"
)

// DefaultService is the web service Moodle enables for the mobile app,
// which every student account can use.
const DefaultService = "moodle_mobile_app"

// Config configures the Moodle client.
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Service  string `mapstructure:"service"`

	// TokenTTL bounds how long a web-service token stays in the cache.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// SiteInfoTTL bounds how long synchronized site info stays in the cache.
	SiteInfoTTL time.Duration `mapstructure:"site_info_ttl"`

	HTTP httpclient.Config `mapstructure:"http"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 12 * time.Hour
	}
	if c.SiteInfoTTL <= 0 {
		c.SiteInfoTTL = time.Hour
	}
	c.HTTP.BaseURL = c.BaseURL
	if c.HTTP.Retry == nil {
		c.HTTP.Retry = &resilience.RetryConfig{}
	}
	if c.HTTP.CircuitBreaker == nil {
		c.HTTP.CircuitBreaker = &resilience.CircuitBreakerConfig{Name: "moodle"}
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks the configuration when the client is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BaseURL == "" {
		return errors.New("moodle: base_url is required")
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("moodle: username and password are required")
	}
	return c.HTTP.Validate()
}
