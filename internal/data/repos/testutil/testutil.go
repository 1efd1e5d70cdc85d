package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated, isolated database for one test. It uses a private
// in-memory SQLite database unless TEST_POSTGRES_DSN is set.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	cfg := db.Config{
		Driver: db.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		cfg = db.Config{Driver: db.DriverPostgres, DSN: dsn}
	}

	svc, err := db.Open(cfg, Logger(tb))
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })

	if err := db.AutoMigrateAuthority(svc.DB()); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if err := db.AutoMigrateClient(svc.DB()); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if cfg.Driver == db.DriverPostgres {
		truncateAll(tb, svc.DB())
	}
	return svc.DB()
}

func truncateAll(tb testing.TB, gdb *gorm.DB) {
	tb.Helper()
	err := gdb.Exec(`TRUNCATE groups, systems, system_functions, workflows, shared_tokens,
		workflow_instances, workflow_instance_steps, sessions`).Error
	if err != nil {
		tb.Fatalf("truncate: %v", err)
	}
}

func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
