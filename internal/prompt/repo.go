package prompt

import (
	"context"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreatePrompt inserts p. With withInitialVersion, version 1 is created from
// p.Template and p.LatestVersionID points at it when the transaction commits.
func (r *Repo) CreatePrompt(ctx context.Context, p *models.Prompt, withInitialVersion bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if !withInitialVersion {
			return nil
		}
		v := &models.PromptVersion{
			PromptID:      p.ID,
			VersionNumber: 1,
			Template:      p.Template,
			CreatedBy:     p.OwnerID,
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Prompt{}).
			Where("id = ?", p.ID).
			Update("latest_version_id", v.ID).Error; err != nil {
			return err
		}
		p.LatestVersionID = &v.ID
		return nil
	})
}

func (r *Repo) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	var p models.Prompt
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrompts returns prompts newest first. An empty projectID lists all projects.
func (r *Repo) ListPrompts(ctx context.Context, projectID string, tags db.TagFilter, limit, offset int) ([]models.Prompt, error) {
	q := r.db.WithContext(ctx).Scopes(tags.Scope("tags"))
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var out []models.Prompt
	if err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpdatePrompt(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Prompt{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repo) DeletePrompt(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Prompt{})
	return res.RowsAffected, res.Error
}

// InsertNextVersion runs one attempt of the read-increment-write sequence.
// Touching the prompt first takes the write lock before anything is read: the
// row lock on MySQL, the database lock on SQLite. The unique
// (prompt_id, version_number) index catches whatever slips through. An empty
// template snapshots the prompt's current one.
func (r *Repo) InsertNextVersion(ctx context.Context, promptID, template, diff string, authorID *string) (*models.PromptVersion, error) {
	var v *models.PromptVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Prompt{}).
			Where("id = ?", promptID).
			Update("updated_at", time.Now().UTC()).Error; err != nil {
			return err
		}

		var p models.Prompt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", promptID).Error; err != nil {
			return err
		}

		var maxNumber int
		if err := tx.Model(&models.PromptVersion{}).
			Where("prompt_id = ?", promptID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}

		if template == "" {
			template = p.Template
		}
		v = &models.PromptVersion{
			PromptID:      p.ID,
			VersionNumber: maxNumber + 1,
			Template:      template,
			Diff:          diff,
			CreatedBy:     authorID,
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}

		return tx.Model(&models.Prompt{}).
			Where("id = ?", p.ID).
			Updates(map[string]any{
				"latest_version_id": v.ID,
				"template":          v.Template,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Repo) GetVersionByID(ctx context.Context, id string) (*models.PromptVersion, error) {
	var v models.PromptVersion
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) GetVersion(ctx context.Context, promptID string, number int) (*models.PromptVersion, error) {
	var v models.PromptVersion
	if err := r.db.WithContext(ctx).
		Where("prompt_id = ? AND version_number = ?", promptID, number).
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns all versions of a prompt in ascending number order.
func (r *Repo) ListVersions(ctx context.Context, promptID string) ([]models.PromptVersion, error) {
	var out []models.PromptVersion
	if err := r.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("version_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
