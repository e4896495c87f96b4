// Package audit appends to and reads the audit log. There is deliberately no
// update or delete path; the model hooks reject both.
package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type Log struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

type Entry struct {
	ActorID      *string
	Action       string
	ResourceType string
	ResourceID   *string
	// Payload is marshalled to JSON; nil stores null.
	Payload any
}

func (l *Log) Record(ctx context.Context, e Entry) (*models.AuditLog, error) {
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return nil, common.Validationf("audit action required")
	}
	var payload datatypes.JSON
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, common.Validationf("audit payload: %v", err)
		}
		payload = datatypes.JSON(b)
	}
	row := &models.AuditLog{
		ActorID:      e.ActorID,
		Action:       action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Payload:      payload,
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, db.Translate(err, "audit actor")
	}
	return row, nil
}

type Filter struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
}

// List returns matching entries newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	q := l.db.WithContext(ctx)
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	var out []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
