package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether r is one of the roles a message may carry.
func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Session struct {
	ID        string                      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ProjectID string                      `gorm:"type:varchar(26);not null;index" json:"project_id"`
	Project   *Project                    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE;" json:"-"`
	CreatedBy *string                     `gorm:"type:varchar(26);index" json:"created_by"`
	Creator   *User                       `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL;" json:"-"`
	Title     string                      `gorm:"type:varchar(255)" json:"title"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	Metadata  datatypes.JSONMap           `gorm:"column:metadata" json:"metadata"`
	CreatedAt time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	s.Tags = normalizeTags(s.Tags)
	if s.Metadata == nil {
		s.Metadata = datatypes.JSONMap{}
	}
	return assignID(&s.ID)
}

// SessionMessage rows are append-only; they are ordered by (created_at, id).
type SessionMessage struct {
	ID              string         `gorm:"primaryKey;type:varchar(26);index:idx_session_msg_order,priority:3" json:"id"`
	SessionID       string         `gorm:"type:varchar(26);not null;index:idx_session_msg_order,priority:1" json:"session_id"`
	Session         *Session       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE;" json:"-"`
	Role            string         `gorm:"type:varchar(16);not null" json:"role"`
	PromptID        *string        `gorm:"type:varchar(26);index" json:"prompt_id"`
	Prompt          *Prompt        `gorm:"foreignKey:PromptID;constraint:OnDelete:SET NULL;" json:"-"`
	PromptVersionID *string        `gorm:"type:varchar(26);index" json:"prompt_version_id"`
	PromptVersion   *PromptVersion `gorm:"foreignKey:PromptVersionID;constraint:OnDelete:SET NULL;" json:"-"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Model           *string        `gorm:"type:varchar(128)" json:"model"`
	TokensPrompt    int            `gorm:"not null;default:0" json:"tokens_prompt"`
	TokensResponse  int            `gorm:"not null;default:0" json:"tokens_response"`
	CostUSD         float64        `gorm:"type:decimal(12,6);not null;default:0" json:"cost_usd"`
	EmbedIndexed    bool           `gorm:"not null;default:false" json:"embed_indexed"`
	RawPath         *string        `gorm:"type:varchar(1024)" json:"raw_path"`
	CreatedAt       time.Time      `gorm:"index:idx_session_msg_order,priority:2" json:"created_at"`
}

func (SessionMessage) TableName() string { return "session_messages" }

func (m *SessionMessage) BeforeCreate(tx *gorm.DB) error { return assignID(&m.ID) }
