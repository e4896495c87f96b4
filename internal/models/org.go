package models

import (
	"time"

	"gorm.io/gorm"
)

type Team struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_team_owner_name,priority:2" json:"name"`
	OwnerID   *string   `gorm:"type:varchar(26);uniqueIndex:idx_team_owner_name,priority:1" json:"owner_id"`
	Owner     *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Team) TableName() string { return "teams" }

func (t *Team) BeforeCreate(tx *gorm.DB) error { return assignID(&t.ID) }

type Project struct {
	ID          string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	TeamID      string    `gorm:"type:varchar(26);not null;uniqueIndex:uniq_project_team_name,priority:1" json:"team_id"`
	Team        *Team     `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE;" json:"-"`
	Name        string    `gorm:"type:varchar(255);not null;uniqueIndex:uniq_project_team_name,priority:2" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error { return assignID(&p.ID) }
