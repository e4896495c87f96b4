// Package artifact keeps metadata for data that lives outside the database:
// vector-store embeddings of session messages and file attachments.
package artifact

import (
	"context"
	"strings"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}

type NewEmbedding struct {
	SessionMessageID string
	VectorID         string
	TextSnippet      string
	Namespace        string
}

func (s *Service) CreateEmbedding(ctx context.Context, in NewEmbedding) (*models.Embedding, error) {
	if in.SessionMessageID == "" {
		return nil, common.Validationf("session_message_id required")
	}
	e := &models.Embedding{
		SessionMessageID: in.SessionMessageID,
		VectorID:         strings.TrimSpace(in.VectorID),
		TextSnippet:      in.TextSnippet,
		Namespace:        strings.TrimSpace(in.Namespace),
	}
	if err := s.repo.CreateEmbedding(ctx, e); err != nil {
		return nil, db.Translate(err, "session message "+in.SessionMessageID)
	}
	return e, nil
}

func (s *Service) GetEmbedding(ctx context.Context, id string) (*models.Embedding, error) {
	e, err := s.repo.GetEmbedding(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "embedding")
	}
	return e, nil
}

func (s *Service) ListEmbeddingsByMessage(ctx context.Context, messageID string) ([]models.Embedding, error) {
	return s.repo.ListEmbeddingsByMessage(ctx, messageID)
}

func (s *Service) ListEmbeddingsByNamespace(ctx context.Context, namespace string, limit int) ([]models.Embedding, error) {
	return s.repo.ListEmbeddingsByNamespace(ctx, namespace, clampLimit(limit))
}

func (s *Service) DeleteEmbedding(ctx context.Context, id string) error {
	n, err := s.repo.DeleteEmbedding(ctx, id)
	if err != nil {
		return db.Translate(err, "embedding "+id)
	}
	if n == 0 {
		return common.NotFoundf("embedding %s", id)
	}
	return nil
}

type NewFile struct {
	ProjectID   string
	UploaderID  *string
	StoragePath string
	SizeBytes   *int64
	MimeType    string
}

func (s *Service) CreateFile(ctx context.Context, in NewFile) (*models.File, error) {
	path := strings.TrimSpace(in.StoragePath)
	switch {
	case in.ProjectID == "":
		return nil, common.Validationf("project_id required")
	case path == "":
		return nil, common.Validationf("storage_path required")
	case in.SizeBytes != nil && *in.SizeBytes < 0:
		return nil, common.Validationf("size_bytes must be >= 0")
	}
	f := &models.File{
		ProjectID:   in.ProjectID,
		UploaderID:  in.UploaderID,
		StoragePath: path,
		SizeBytes:   in.SizeBytes,
		MimeType:    in.MimeType,
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		return nil, db.Translate(err, "file")
	}
	return f, nil
}

func (s *Service) GetFile(ctx context.Context, id string) (*models.File, error) {
	f, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "file")
	}
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, projectID string, limit, offset int) ([]models.File, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListFiles(ctx, projectID, clampLimit(limit), offset)
}

func (s *Service) DeleteFile(ctx context.Context, id string) error {
	n, err := s.repo.DeleteFile(ctx, id)
	if err != nil {
		return db.Translate(err, "file "+id)
	}
	if n == 0 {
		return common.NotFoundf("file %s", id)
	}
	return nil
}
