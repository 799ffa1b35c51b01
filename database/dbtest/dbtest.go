// Package dbtest opens isolated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

var seq atomic.Int64

// Open returns a fresh in-memory database with models auto-migrated. The
// database is closed when the test ends.
func Open(t testing.TB, models ...interface{}) *database.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := database.Config{
		Driver:   database.DriverSQLite,
		DSN:      fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1)),
		LogLevel: "silent",
	}
	db, err := database.New(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}
	return db
}
