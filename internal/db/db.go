package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Options struct {
	Driver  string
	DSN     string
	LogSQL  bool
	MaxOpen int
}

// Open opens the store behind a *gorm.DB. SQLite DSNs get foreign key
// enforcement switched on per connection, since cascades depend on it.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case "", DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	case DriverSQLite, "sqlite3":
		dialector = gormsqlite.Open(sqliteDSN(opts.DSN))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER=%q", opts.Driver)
	}

	level := logger.Warn
	if opts.LogSQL {
		level = logger.Info
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: logger.New(log.New(os.Stdout, "", log.LstdFlags), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Connect is Open for process entrypoints: failure is fatal.
func Connect(opts Options) *gorm.DB {
	gdb, err := Open(opts)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates every table, index and foreign key.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}
