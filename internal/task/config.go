package task

import "fmt"

// Result backend kinds.
const (
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config selects where worker task state is read from.
type Config struct {
	Backend string `mapstructure:"backend"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
}

// Validate checks the backend kind.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRedis, BackendNone:
		return nil
	}
	return fmt.Errorf("task: backend must be %q or %q, got %q", BackendRedis, BackendNone, c.Backend)
}
