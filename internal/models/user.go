package models

import (
	"time"

	"gorm.io/gorm"
)

const AuthProviderLocal = "local"

type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name           string    `gorm:"type:varchar(255)" json:"name"`
	HashedPassword *string   `gorm:"type:varchar(255)" json:"-"`
	AuthProvider   string    `gorm:"type:varchar(32);not null" json:"auth_provider"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.AuthProvider == "" {
		u.AuthProvider = AuthProviderLocal
	}
	return assignID(&u.ID)
}

// IsExternal reports whether credentials live with a third-party identity provider.
func (u *User) IsExternal() bool {
	return u.AuthProvider != "" && u.AuthProvider != AuthProviderLocal
}
