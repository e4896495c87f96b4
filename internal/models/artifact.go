package models

import (
	"time"

	"gorm.io/gorm"
)

type Embedding struct {
	ID               string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	SessionMessageID string          `gorm:"type:varchar(26);not null;index" json:"session_message_id"`
	SessionMessage   *SessionMessage `gorm:"foreignKey:SessionMessageID;constraint:OnDelete:CASCADE;" json:"-"`
	VectorID         string          `gorm:"type:varchar(255)" json:"vector_id"`
	TextSnippet      string          `gorm:"type:text" json:"text_snippet"`
	Namespace        string          `gorm:"type:varchar(128);index" json:"namespace"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (Embedding) TableName() string { return "embeddings" }

func (e *Embedding) BeforeCreate(tx *gorm.DB) error { return assignID(&e.ID) }

// File points at an object in external storage; the bytes never pass through here.
type File struct {
	ID          string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ProjectID   string    `gorm:"type:varchar(26);not null;index" json:"project_id"`
	Project     *Project  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE;" json:"-"`
	UploaderID  *string   `gorm:"type:varchar(26);index" json:"uploader_id"`
	Uploader    *User     `gorm:"foreignKey:UploaderID;constraint:OnDelete:SET NULL;" json:"-"`
	StoragePath string    `gorm:"type:varchar(1024);not null" json:"storage_path"`
	SizeBytes   *int64    `json:"size_bytes"`
	MimeType    string    `gorm:"type:varchar(255)" json:"mime_type"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (File) TableName() string { return "files" }

func (f *File) BeforeCreate(tx *gorm.DB) error { return assignID(&f.ID) }
