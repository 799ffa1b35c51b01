package database

import (
	"fmt"
	"net/url"
	"time"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Schema management modes.
const (
	MigrateAuto = "auto" // GORM AutoMigrate on the registered models
	MigrateSQL  = "sql"  // versioned SQL files through golang-migrate
	MigrateNone = "none"
)

// PostgresConfig holds the discrete postgres connection settings used when
// DSN is empty.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"db" mapstructure:"db"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// DSN builds a postgres URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Config holds database connection configuration.
type Config struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	DSN      string         `yaml:"dsn" mapstructure:"dsn"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`

	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`

	// Migrate is one of auto, sql or none.
	Migrate            string        `yaml:"migrate" mapstructure:"migrate"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`
	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite {
		if c.DSN == "" {
			c.DSN = "file::memory:?cache=shared&_foreign_keys=on"
		}
		// one writer; also keeps a shared in-memory database alive
		c.MaxOpenConns = 1
		c.MaxIdleConns = 1
	}
	if c.Driver == DriverPostgres {
		if c.Postgres.Host == "" {
			c.Postgres.Host = "localhost"
		}
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.DSN == "" {
			c.DSN = c.Postgres.DSN()
		}
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.Migrate == "" {
		c.Migrate = MigrateAuto
		if c.Driver == DriverPostgres {
			c.Migrate = MigrateSQL
		}
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite (got: %s)", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) must be <= max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	switch c.Migrate {
	case MigrateAuto, MigrateSQL, MigrateNone:
	default:
		return fmt.Errorf("database.migrate must be auto, sql or none (got: %s)", c.Migrate)
	}
	if c.Migrate == MigrateSQL && c.Driver != DriverPostgres {
		return fmt.Errorf("database.migrate=sql is only supported with postgres")
	}
	return nil
}
