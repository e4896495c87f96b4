package org

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

type NewUser struct {
	Email          string
	Name           string
	HashedPassword string
	AuthProvider   string
}

func (in NewUser) validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return common.Validationf("email required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return common.Validationf("invalid email %q", in.Email)
	}
	external := in.AuthProvider != "" && in.AuthProvider != models.AuthProviderLocal
	if external && in.HashedPassword != "" {
		return common.Validationf("users from auth provider %q cannot carry a password hash", in.AuthProvider)
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        strings.TrimSpace(in.Email),
		Name:         in.Name,
		AuthProvider: in.AuthProvider,
	}
	if in.HashedPassword != "" {
		h := in.HashedPassword
		u.HashedPassword = &h
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, db.Translate(err, "user email")
	}
	return u, nil
}

// EnsureUser returns the user with in.Email, creating it when absent.
func (s *Service) EnsureUser(ctx context.Context, in NewUser) (*models.User, bool, error) {
	existing, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, db.Translate(err, "user")
	}
	u, err := s.CreateUser(ctx, in)
	if errors.Is(err, common.ErrConflict) {
		// lost a race against a concurrent creator
		existing, getErr := s.repo.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
		if getErr != nil {
			return nil, false, db.Translate(getErr, "user")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "user")
	}
	return u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, db.Translate(err, "user")
	}
	return u, nil
}

func (s *Service) RenameUser(ctx context.Context, id, name string) (*models.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.UpdateUser(ctx, id, map[string]any{"name": name}); err != nil {
		return nil, db.Translate(err, "user")
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user. Teams, prompts, versions, sessions and events
// the user owned survive with their reference cleared.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	n, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return db.Translate(err, "user")
	}
	if n == 0 {
		return common.NotFoundf("user %s", id)
	}
	return nil
}

// Teams

func (s *Service) CreateTeam(ctx context.Context, ownerID *string, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.Validationf("team name required")
	}
	t := &models.Team{Name: name, OwnerID: ownerID}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		return nil, db.Translate(err, "team "+name)
	}
	return t, nil
}

// EnsureTeam returns the owner's team called name, creating it when absent.
func (s *Service) EnsureTeam(ctx context.Context, ownerID *string, name string) (*models.Team, bool, error) {
	name = strings.TrimSpace(name)
	t, err := s.repo.FindTeam(ctx, ownerID, name)
	if err == nil {
		return t, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, db.Translate(err, "team")
	}
	t, err = s.CreateTeam(ctx, ownerID, name)
	if errors.Is(err, common.ErrConflict) {
		existing, getErr := s.repo.FindTeam(ctx, ownerID, name)
		if getErr != nil {
			return nil, false, db.Translate(getErr, "team")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *Service) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	t, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "team")
	}
	return t, nil
}

func (s *Service) ListTeams(ctx context.Context, ownerID string) ([]models.Team, error) {
	return s.repo.ListTeamsByOwner(ctx, ownerID)
}

// DeleteTeam removes the team and, by cascade, its projects.
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	n, err := s.repo.DeleteTeam(ctx, id)
	if err != nil {
		return db.Translate(err, "team")
	}
	if n == 0 {
		return common.NotFoundf("team %s", id)
	}
	return nil
}

// Projects

func (s *Service) CreateProject(ctx context.Context, teamID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.Validationf("project name required")
	}
	if teamID == "" {
		return nil, common.Validationf("team_id required")
	}
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	p := &models.Project{TeamID: teamID, Name: name, Description: description}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, db.Translate(err, "project "+name)
	}
	return p, nil
}

// EnsureProject creates the project unless the team already has one with
// that name, in which case the existing row is returned untouched.
func (s *Service) EnsureProject(ctx context.Context, teamID, name, description string) (*models.Project, bool, error) {
	name = strings.TrimSpace(name)
	existing, err := s.repo.FindProject(ctx, teamID, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, db.Translate(err, "project")
	}
	p, err := s.CreateProject(ctx, teamID, name, description)
	if errors.Is(err, common.ErrConflict) {
		existing, getErr := s.repo.FindProject(ctx, teamID, name)
		if getErr != nil {
			return nil, false, db.Translate(getErr, "project")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "project")
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, teamID string, limit, offset int) ([]models.Project, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListProjects(ctx, teamID, limit, offset)
}

type ProjectPatch struct {
	Name        *string
	Description *string
}

func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*models.Project, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, common.Validationf("project name required")
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if len(fields) > 0 {
		if _, err := s.repo.UpdateProject(ctx, id, fields); err != nil {
			return nil, db.Translate(err, "project name")
		}
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes the project with its prompts, versions, sessions,
// messages, embeddings, files and aggregates.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	n, err := s.repo.DeleteProject(ctx, id)
	if err != nil {
		return db.Translate(err, "project")
	}
	if n == 0 {
		return common.NotFoundf("project %s", id)
	}
	return nil
}
