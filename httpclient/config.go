package httpclient

import (
	"errors"
	"net/url"
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/resilience"
	"github.com/guiqiqi/itmo-moodle-agent/security"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP client.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds a single attempt. Defaults to 30s.
	Timeout time.Duration `mapstructure:"timeout"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
	// Headers are default headers applied to all requests.
	Headers map[string]string `mapstructure:"headers"`

	TLS *security.TLSConfig `mapstructure:"tls"`

	// Retry, CircuitBreaker and RateLimiter are disabled when nil.
	Retry          *resilience.RetryConfig          `mapstructure:"retry"`
	CircuitBreaker *resilience.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RateLimiter    *resilience.RateLimiterConfig    `mapstructure:"rate_limiter"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "itmo-moodle-agent"
	}
	if c.Retry != nil {
		if c.Retry.RetryIf == nil {
			c.Retry.RetryIf = IsRetryable
		}
		c.Retry.ApplyDefaults()
	}
	if c.CircuitBreaker != nil {
		if c.CircuitBreaker.IsFailure == nil {
			c.CircuitBreaker.IsFailure = IsRetryable
		}
		c.CircuitBreaker.ApplyDefaults()
	}
	if c.RateLimiter != nil {
		c.RateLimiter.ApplyDefaults()
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("httpclient: timeout must be positive")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("httpclient: base_url must be an absolute URL")
		}
	}
	return c.TLS.Validate()
}
