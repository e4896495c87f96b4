package models

import (
	"fmt"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrVersionImmutable is returned by any attempt to update or delete a
// single prompt version through gorm.
var ErrVersionImmutable = fmt.Errorf("%w: prompt versions are immutable", common.ErrValidation)

type Prompt struct {
	ID              string                      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ProjectID       string                      `gorm:"type:varchar(26);not null;uniqueIndex:uniq_prompt_project_name,priority:1" json:"project_id"`
	Project         *Project                    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE;" json:"-"`
	OwnerID         *string                     `gorm:"type:varchar(26);index" json:"owner_id"`
	Owner           *User                       `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL;" json:"-"`
	Name            string                      `gorm:"type:varchar(255);not null;uniqueIndex:uniq_prompt_project_name,priority:2" json:"name"`
	Template        string                      `gorm:"type:text;not null" json:"template"`
	DefaultModel    string                      `gorm:"type:varchar(128)" json:"default_model"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	LatestVersionID *string                     `gorm:"type:varchar(26)" json:"latest_version_id"`
	CreatedAt       time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (Prompt) TableName() string { return "prompts" }

func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	p.Tags = normalizeTags(p.Tags)
	return assignID(&p.ID)
}

type PromptVersion struct {
	ID            string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	PromptID      string    `gorm:"type:varchar(26);not null;uniqueIndex:uniq_prompt_version_number,priority:1" json:"prompt_id"`
	Prompt        *Prompt   `gorm:"foreignKey:PromptID;constraint:OnDelete:CASCADE;" json:"-"`
	VersionNumber int       `gorm:"not null;uniqueIndex:uniq_prompt_version_number,priority:2" json:"version_number"`
	Template      string    `gorm:"type:text;not null" json:"template"`
	Diff          string    `gorm:"type:text" json:"diff"`
	CreatedBy     *string   `gorm:"type:varchar(26);index" json:"created_by"`
	Author        *User     `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL;" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (PromptVersion) TableName() string { return "prompt_versions" }

func (v *PromptVersion) BeforeCreate(tx *gorm.DB) error { return assignID(&v.ID) }

func (v *PromptVersion) BeforeUpdate(tx *gorm.DB) error { return ErrVersionImmutable }

func (v *PromptVersion) BeforeDelete(tx *gorm.DB) error { return ErrVersionImmutable }
