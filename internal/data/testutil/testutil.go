// Package testutil provides the shared Postgres harness for storage tests.
// Tests that need a database are gated on TEST_POSTGRES_DSN and skip when it
// is unset, so the pure-logic suites still run everywhere.
package testutil

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// Logger returns a development logger for tests.
func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// DB opens the test database named by TEST_POSTGRES_DSN, migrating the
// snapshot tables. Skips the test when the variable is unset.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if err := db.AutoMigrate(
		&types.ProjectSnapshot{},
		&types.TaskSnapshot{},
		&types.TaskScheduleSnapshot{},
		&types.DayCardSlot{},
		&types.MilestoneSnapshot{},
		&types.UserSnapshot{},
		&types.EmployeeSnapshot{},
		&types.ParticipantRow{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Tx begins a transaction that is rolled back when the test ends, keeping
// the test database clean between cases.
func Tx(t *testing.T, db *gorm.DB) *gorm.DB {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}
