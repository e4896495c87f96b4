// Package dbtest opens a migrated in-memory SQLite store for package tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/db"
	"gorm.io/gorm"
)

// Open returns a fresh store private to t. A single connection keeps the
// in-memory database alive for the test's lifetime and serializes writers
// the way SQLite would on disk.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(db.Options{
		Driver:  db.DriverSQLite,
		DSN:     fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name),
		MaxOpen: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return migrate(t, gdb)
}

// OpenFile returns a store backed by a file in t.TempDir() with up to
// maxOpen connections, so writers really contend. busyTimeout is how long a
// writer waits on a held lock before SQLite reports BUSY.
func OpenFile(t testing.TB, maxOpen int, busyTimeout time.Duration) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	gdb, err := db.Open(db.Options{
		Driver:  db.DriverSQLite,
		DSN:     fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds()),
		MaxOpen: maxOpen,
	})
	if err != nil {
		t.Fatalf("open sqlite file: %v", err)
	}
	return migrate(t, gdb)
}

func migrate(t testing.TB, gdb *gorm.DB) *gorm.DB {
	t.Helper()
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
