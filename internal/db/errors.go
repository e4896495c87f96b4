package db

import (
	"errors"
	"fmt"

	gosqlite "github.com/glebarez/go-sqlite"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"gorm.io/gorm"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Translate maps gorm/driver errors onto the common error kinds. what names
// the entity for the message. Errors of an unknown shape pass through.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if common.Kind(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.NotFoundf("%s", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", common.ErrConflict, what)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s references a missing entity", common.ErrNotFound, what)
	}
	return err
}

// IsRetryable reports whether a transaction failed only because a concurrent
// writer won a race: a unique violation, a MySQL deadlock or lock wait
// timeout, or SQLite being busy/locked.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	var liteErr *gosqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
