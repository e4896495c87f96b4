package db_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/db/dbtest"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	other := errors.New("disk on fire")
	cases := []struct {
		name string
		err  error
		want error // nil means the error passes through unchanged
	}{
		{"not found", gorm.ErrRecordNotFound, common.ErrNotFound},
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), common.ErrConflict},
		{"foreign key", gorm.ErrForeignKeyViolated, common.ErrNotFound},
		{"already a kind", common.Validationf("name required"), common.ErrValidation},
		{"unknown", other, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := db.Translate(tc.err, "thing")
			if tc.want == nil {
				if got != tc.err {
					t.Fatalf("Translate = %v, want unchanged %v", got, tc.err)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("Translate = %v, want kind %v", got, tc.want)
			}
		})
	}
	if db.Translate(nil, "thing") != nil {
		t.Fatalf("Translate(nil) != nil")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate key", gorm.ErrDuplicatedKey, true},
		{"mysql deadlock", &mysqldrv.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysqldrv.MySQLError{Number: 1205}, true},
		{"wrapped deadlock", fmt.Errorf("tx: %w", &mysqldrv.MySQLError{Number: 1213}), true},
		{"mysql duplicate entry", &mysqldrv.MySQLError{Number: 1062}, false},
		{"not found", gorm.ErrRecordNotFound, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := db.IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryable_SQLiteBusy(t *testing.T) {
	gdb := dbtest.OpenFile(t, 2, 0)

	holder := gdb.Begin()
	defer holder.Rollback()
	if err := holder.Create(&models.User{Email: "a@example.com"}).Error; err != nil {
		t.Fatalf("take write lock: %v", err)
	}

	err := gdb.Create(&models.User{Email: "b@example.com"}).Error
	if err == nil {
		t.Fatalf("second writer should be blocked")
	}
	if !db.IsRetryable(err) {
		t.Fatalf("busy error not retryable: %v", err)
	}
}

func TestTranslate_DriverErrors(t *testing.T) {
	gdb := dbtest.Open(t)

	if err := gdb.Create(&models.User{Email: "dup@example.com"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := gdb.Create(&models.User{Email: "dup@example.com"}).Error
	if !db.IsRetryable(err) || !errors.Is(db.Translate(err, "user"), common.ErrConflict) {
		t.Fatalf("duplicate email: got %v", err)
	}

	err = gdb.Create(&models.Project{TeamID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Name: "orphan", CreatedAt: time.Now()}).Error
	if !errors.Is(db.Translate(err, "project"), common.ErrNotFound) {
		t.Fatalf("missing team: got %v", err)
	}
}
