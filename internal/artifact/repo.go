package artifact

import (
	"context"

	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateEmbedding inserts e and flags its message as indexed in one
// transaction.
func (r *Repo) CreateEmbedding(ctx context.Context, e *models.Embedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.SessionMessage
		if err := tx.Select("id").First(&msg, "id = ?", e.SessionMessageID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SessionMessage{}).
			Where("id = ?", msg.ID).
			Update("embed_indexed", true).Error; err != nil {
			return err
		}
		return tx.Create(e).Error
	})
}

func (r *Repo) GetEmbedding(ctx context.Context, id string) (*models.Embedding, error) {
	var e models.Embedding
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) ListEmbeddingsByMessage(ctx context.Context, messageID string) ([]models.Embedding, error) {
	var out []models.Embedding
	if err := r.db.WithContext(ctx).
		Where("session_message_id = ?", messageID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListEmbeddingsByNamespace(ctx context.Context, namespace string, limit int) ([]models.Embedding, error) {
	var out []models.Embedding
	if err := r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) DeleteEmbedding(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Embedding{})
	return res.RowsAffected, res.Error
}

func (r *Repo) CreateFile(ctx context.Context, f *models.File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repo) GetFile(ctx context.Context, id string) (*models.File, error) {
	var f models.File
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repo) ListFiles(ctx context.Context, projectID string, limit, offset int) ([]models.File, error) {
	var out []models.File
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) DeleteFile(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.File{})
	return res.RowsAffected, res.Error
}
