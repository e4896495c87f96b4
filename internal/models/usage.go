package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UsageEvent struct {
	ID               string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID           *string         `gorm:"type:varchar(26);index" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL;" json:"-"`
	ProjectID        *string         `gorm:"type:varchar(26);index:idx_usage_project_created,priority:1" json:"project_id"`
	Project          *Project        `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL;" json:"-"`
	SessionMessageID *string         `gorm:"type:varchar(26);index" json:"session_message_id"`
	SessionMessage   *SessionMessage `gorm:"foreignKey:SessionMessageID;constraint:OnDelete:SET NULL;" json:"-"`
	Model            string          `gorm:"type:varchar(128);not null" json:"model"`
	TokensPrompt     int             `gorm:"not null;default:0" json:"tokens_prompt"`
	TokensResponse   int             `gorm:"not null;default:0" json:"tokens_response"`
	CostUSD          float64         `gorm:"type:decimal(12,6);not null;default:0" json:"cost_usd"`
	LatencyMS        *int            `json:"latency_ms"`
	Feedback         *int            `json:"feedback"`
	CreatedAt        time.Time       `gorm:"index:idx_usage_project_created,priority:2" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }

func (e *UsageEvent) BeforeCreate(tx *gorm.DB) error { return assignID(&e.ID) }

// UsageAggregate is derived from usage_events by the aggregation job and is
// only ever written by it.
type UsageAggregate struct {
	ID          string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ProjectID   string         `gorm:"type:varchar(26);not null;uniqueIndex:uniq_usage_agg_project_date,priority:1" json:"project_id"`
	Project     *Project       `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE;" json:"-"`
	Date        datatypes.Date `gorm:"not null;uniqueIndex:uniq_usage_agg_project_date,priority:2" json:"date"`
	TokensTotal int64          `gorm:"not null;default:0" json:"tokens_total"`
	CostTotal   float64        `gorm:"type:decimal(14,6);not null;default:0" json:"cost_total"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (UsageAggregate) TableName() string { return "usage_aggregates" }

func (a *UsageAggregate) BeforeCreate(tx *gorm.DB) error { return assignID(&a.ID) }
