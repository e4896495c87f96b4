package chat

import (
	"context"

	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *models.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns sessions newest first. An empty projectID lists all.
func (r *Repo) ListSessions(ctx context.Context, projectID string, tags db.TagFilter, limit, offset int) ([]models.Session, error) {
	q := r.db.WithContext(ctx).Scopes(tags.Scope("tags"))
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var out []models.Session
	if err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpdateSession(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repo) DeleteSession(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *models.SessionMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetMessage(ctx context.Context, id string) (*models.SessionMessage, error) {
	var m models.SessionMessage
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns messages newest -> oldest. With a cursor, only
// messages strictly older than it are returned.
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int, before *models.SessionMessage) ([]models.SessionMessage, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if before != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", before.CreatedAt, before.CreatedAt, before.ID)
	}

	var msgs []models.SessionMessage
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
