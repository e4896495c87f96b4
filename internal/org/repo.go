package org

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

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UpdateUser(ctx context.Context, id string, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{ID: id}).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *Repo) DeleteUser(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// Teams

func (r *Repo) CreateTeam(ctx context.Context, t *models.Team) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTeam looks a team up by owner and name. A nil owner matches ownerless teams.
func (r *Repo) FindTeam(ctx context.Context, ownerID *string, name string) (*models.Team, error) {
	q := r.db.WithContext(ctx).Where("name = ?", name)
	if ownerID == nil {
		q = q.Where("owner_id IS NULL")
	} else {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var t models.Team
	if err := q.Order("id ASC").First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ListTeamsByOwner(ctx context.Context, ownerID string) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *Repo) DeleteTeam(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Team{})
	return res.RowsAffected, res.Error
}

// Projects

func (r *Repo) CreateProject(ctx context.Context, p *models.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) FindProject(ctx context.Context, teamID, name string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).
		Where("team_id = ? AND name = ?", teamID, name).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns projects newest first. An empty teamID lists all teams.
func (r *Repo) ListProjects(ctx context.Context, teamID string, limit, offset int) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if teamID != "" {
		q = q.Where("team_id = ?", teamID)
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *Repo) UpdateProject(ctx context.Context, id string, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Project{ID: id}).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *Repo) DeleteProject(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Project{})
	return res.RowsAffected, res.Error
}
