package models

import (
	"fmt"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAuditAppendOnly = fmt.Errorf("%w: audit log is append-only", common.ErrValidation)

type AuditLog struct {
	ID           string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ActorID      *string        `gorm:"type:varchar(26);index" json:"actor_id"`
	Actor        *User          `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL;" json:"-"`
	Action       string         `gorm:"type:varchar(64);not null;index" json:"action"`
	ResourceType string         `gorm:"type:varchar(64);index:idx_audit_resource,priority:1" json:"resource_type"`
	ResourceID   *string        `gorm:"type:varchar(26);index:idx_audit_resource,priority:2" json:"resource_id"`
	Payload      datatypes.JSON `json:"payload"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error { return assignID(&a.ID) }

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error { return ErrAuditAppendOnly }

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error { return ErrAuditAppendOnly }
