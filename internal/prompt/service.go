package prompt

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxVersionAttempts = 5
	defaultListLimit   = 50
	maxListLimit       = 200
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

type NewPrompt struct {
	ProjectID    string
	OwnerID      *string
	Name         string
	Template     string
	DefaultModel string
	Tags         []string
	// InitialVersion also creates version 1 from Template.
	InitialVersion bool
}

func (s *Service) CreatePrompt(ctx context.Context, in NewPrompt) (*models.Prompt, error) {
	name := strings.TrimSpace(in.Name)
	if in.ProjectID == "" {
		return nil, common.Validationf("project_id required")
	}
	if name == "" {
		return nil, common.Validationf("prompt name required")
	}
	if in.Template == "" {
		return nil, common.Validationf("template required")
	}
	p := &models.Prompt{
		ProjectID:    in.ProjectID,
		OwnerID:      in.OwnerID,
		Name:         name,
		Template:     in.Template,
		DefaultModel: in.DefaultModel,
		Tags:         in.Tags,
	}
	if err := s.repo.CreatePrompt(ctx, p, in.InitialVersion); err != nil {
		return nil, db.Translate(err, "prompt "+name)
	}
	return p, nil
}

func (s *Service) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	p, err := s.repo.GetPrompt(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "prompt")
	}
	return p, nil
}

func (s *Service) ListPrompts(ctx context.Context, projectID string, tags db.TagFilter, limit, offset int) ([]models.Prompt, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPrompts(ctx, projectID, tags, limit, offset)
}

// PromptPatch lists the mutable prompt fields. The template only changes by
// creating a version.
type PromptPatch struct {
	Name         *string
	DefaultModel *string
	Tags         *[]string
}

func (s *Service) UpdatePrompt(ctx context.Context, id string, patch PromptPatch) (*models.Prompt, error) {
	if _, err := s.GetPrompt(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, common.Validationf("prompt name required")
		}
		fields["name"] = name
	}
	if patch.DefaultModel != nil {
		fields["default_model"] = *patch.DefaultModel
	}
	if patch.Tags != nil {
		fields["tags"] = datatypes.JSONSlice[string](models.NormalizeTags(*patch.Tags))
	}
	if len(fields) > 0 {
		if err := s.repo.UpdatePrompt(ctx, id, fields); err != nil {
			return nil, db.Translate(err, "prompt name")
		}
	}
	return s.GetPrompt(ctx, id)
}

// DeletePrompt removes the prompt and all of its versions.
func (s *Service) DeletePrompt(ctx context.Context, id string) error {
	n, err := s.repo.DeletePrompt(ctx, id)
	if err != nil {
		return db.Translate(err, "prompt")
	}
	if n == 0 {
		return common.NotFoundf("prompt %s", id)
	}
	return nil
}

type NewVersion struct {
	Template string
	Diff     string
	AuthorID *string
}

// CreateVersion appends the next version to a prompt and repoints
// latest_version_id at it. Attempts that lose a race to a concurrent writer
// are retried; after maxVersionAttempts the caller gets a Conflict.
func (s *Service) CreateVersion(ctx context.Context, promptID string, in NewVersion) (*models.PromptVersion, error) {
	var lastErr error
	for attempt := 1; attempt <= maxVersionAttempts; attempt++ {
		v, err := s.repo.InsertNextVersion(ctx, promptID, in.Template, in.Diff, in.AuthorID)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFoundf("prompt %s", promptID)
		}
		if !db.IsRetryable(err) {
			return nil, db.Translate(err, "prompt version")
		}
		lastErr = err
		if attempt == maxVersionAttempts {
			break
		}
		log.Printf("[CreateVersion] retry prompt_id=%s attempt=%d err=%v", promptID, attempt, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return nil, common.Conflictf("prompt %s: version number contended: %v", promptID, lastErr)
}

// retryBackoff spreads contending writers apart: 5ms per attempt plus up to
// 5ms of jitter.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt)*5*time.Millisecond + rand.N(5*time.Millisecond)
}

func (s *Service) GetVersion(ctx context.Context, promptID string, number int) (*models.PromptVersion, error) {
	v, err := s.repo.GetVersion(ctx, promptID, number)
	if err != nil {
		return nil, db.Translate(err, "prompt version")
	}
	return v, nil
}

func (s *Service) GetVersionByID(ctx context.Context, id string) (*models.PromptVersion, error) {
	v, err := s.repo.GetVersionByID(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "prompt version")
	}
	return v, nil
}

func (s *Service) ListVersions(ctx context.Context, promptID string) ([]models.PromptVersion, error) {
	if _, err := s.GetPrompt(ctx, promptID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, promptID)
}

// LatestVersion resolves the prompt's latest_version_id. A prompt without
// versions yields NotFound.
func (s *Service) LatestVersion(ctx context.Context, promptID string) (*models.PromptVersion, error) {
	p, err := s.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if p.LatestVersionID == nil {
		return nil, common.NotFoundf("prompt %s has no versions", promptID)
	}
	return s.GetVersionByID(ctx, *p.LatestVersionID)
}
