// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/zulandar/corkboard/internal/db"
	"gorm.io/gorm"
)

// OpenDB returns a migrated in-memory sqlite database that lives for the
// duration of the test.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}
