package app

import (
	"errors"
	"fmt"

	"github.com/guiqiqi/itmo-moodle-agent/auth"
	"github.com/guiqiqi/itmo-moodle-agent/config"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/internal/moodle"
	"github.com/guiqiqi/itmo-moodle-agent/internal/task"
	"github.com/guiqiqi/itmo-moodle-agent/observability"
	"github.com/guiqiqi/itmo-moodle-agent/redis"
	"github.com/guiqiqi/itmo-moodle-agent/server"
)

// DefaultAPIVersion is the path segment under /api when none is configured.
const DefaultAPIVersion = "v1"

// Config is the agent configuration.
//
//	name: itmo-moodle-agent
//	environment: prod
//	api_version: v1
//	database:
//	  driver: postgres
//	auth:
//	  jwt:
//	    secret: "..."
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	APIVersion    string               `yaml:"api_version" mapstructure:"api_version"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Moodle        moodle.Config        `yaml:"moodle" mapstructure:"moodle"`
	Task          task.Config          `yaml:"task" mapstructure:"task"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills in every section. Outside the test environment the
// database defaults to postgres; without redis, task state is not polled.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Database.Driver == "" && !c.IsTest() {
		c.Database.Driver = database.DriverPostgres
	}
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Moodle.ApplyDefaults()
	if c.Task.Backend == "" && !c.Redis.Enabled {
		c.Task.Backend = task.BackendNone
	}
	c.Task.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section and the constraints between them.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	checks := []struct {
		section string
		err     error
	}{
		{"database", c.Database.Validate()},
		{"redis", c.Redis.Validate()},
		{"server", c.Server.Validate()},
		{"auth", c.Auth.Validate()},
		{"moodle", c.Moodle.Validate()},
		{"task", c.Task.Validate()},
		{"observability", c.Observability.Validate()},
	}
	for _, ch := range checks {
		if ch.err != nil {
			return fmt.Errorf("%s: %w", ch.section, ch.err)
		}
	}
	if c.Task.Backend == task.BackendRedis && !c.Redis.Enabled {
		return errors.New("task: backend redis requires redis.enabled")
	}
	if c.Environment == config.EnvProd && c.Database.Driver == database.DriverSQLite {
		return errors.New("database: sqlite is only supported outside prod")
	}
	return nil
}
