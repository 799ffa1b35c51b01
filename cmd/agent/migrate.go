package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/database/migration"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/migrations"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the postgres schema",
		Long: `Applies or rolls back the embedded SQL migrations. The service applies
pending migrations on start when database.migrate is sql.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE:      runMigrate,
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if cfg.Database.Driver != database.DriverPostgres {
		return errors.New("migrate: SQL migrations need the postgres driver")
	}

	log := logger.Init(cfg.Logging, cfg.Name).WithComponent("migrate")
	db, err := database.New(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "up":
		err = migration.MigrateUp(db.GormDB, migrations.FS, ".", migration.Postgres)
	case "down":
		err = migration.MigrateDown(db.GormDB, migrations.FS, ".", migration.Postgres)
	case "version":
		v, dirty, verr := migration.MigrateVersion(db.GormDB, migrations.FS, ".", migration.Postgres)
		if verr != nil {
			return verr
		}
		cmd.Printf("schema version %d (dirty=%t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("migrate: unknown action %q", action)
	}
	if err != nil {
		return err
	}
	cmd.Printf("migrate %s completed\n", action)
	return nil
}
