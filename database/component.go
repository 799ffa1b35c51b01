package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/guiqiqi/itmo-moodle-agent/component"
	"github.com/guiqiqi/itmo-moodle-agent/database/migration"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// Component wraps DB for lifecycle management and applies the schema on
// Start according to Config.Migrate.
type Component struct {
	db     *DB
	cfg    Config
	log    *logger.Logger
	models []interface{}

	migrations     fs.FS
	migrationsPath string
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{
		cfg: cfg,
		log: log.WithComponent("database"),
	}
}

// WithModels registers models for Migrate=auto.
func (c *Component) WithModels(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// WithMigrations sets the SQL migration source for Migrate=sql.
func (c *Component) WithMigrations(source fs.FS, path string) *Component {
	c.migrations = source
	c.migrationsPath = path
	return c
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB { return c.db }

// Name returns the component name.
func (c *Component) Name() string { return "database" }

// Start connects and applies the schema.
func (c *Component) Start(ctx context.Context) error {
	db, err := New(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	switch c.cfg.Migrate {
	case MigrateAuto:
		if len(c.models) > 0 {
			if err := db.AutoMigrate(c.models...); err != nil {
				return fmt.Errorf("database auto-migrate: %w", err)
			}
		}
	case MigrateSQL:
		if c.migrations == nil {
			return fmt.Errorf("database migrate=sql but no migration source configured")
		}
		if err := migration.MigrateUp(db.GormDB, c.migrations, c.migrationsPath, migration.Postgres); err != nil {
			return fmt.Errorf("database sql migrate: %w", err)
		}
		c.log.Info("SQL migrations applied")
	}
	return nil
}

// Stop closes the connection pool.
func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings the database.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not initialized"}
	}
	if err := c.db.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe summarizes the configuration for the startup log.
func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "database",
		Details: fmt.Sprintf("driver=%s pool=%d/%d migrate=%s", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.Migrate),
	}
}
