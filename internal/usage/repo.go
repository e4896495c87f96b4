package usage

import (
	"context"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateEvent(ctx context.Context, e *models.UsageEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) GetEvent(ctx context.Context, id string) (*models.UsageEvent, error) {
	var e models.UsageEvent
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents returns events newest first. An empty projectID lists every event.
func (r *Repo) ListEvents(ctx context.Context, projectID string, limit int) ([]models.UsageEvent, error) {
	q := r.db.WithContext(ctx)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var out []models.UsageEvent
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) SetFeedback(ctx context.Context, id string, feedback *int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.UsageEvent{}).
		Where("id = ?", id).
		Update("feedback", feedback)
	return res.RowsAffected, res.Error
}

type projectTotal struct {
	ProjectID   string
	TokensTotal int64
	CostTotal   float64
}

// sumWindow totals events in [start, end) per project. Events whose project
// was deleted (project_id NULL) are left out.
func sumWindow(tx *gorm.DB, start, end time.Time, projectID string) ([]projectTotal, error) {
	q := tx.Model(&models.UsageEvent{}).
		Select("project_id, COALESCE(SUM(tokens_prompt + tokens_response), 0) AS tokens_total, COALESCE(SUM(cost_usd), 0) AS cost_total").
		Where("project_id IS NOT NULL AND created_at >= ? AND created_at < ?", start, end)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var rows []projectTotal
	if err := q.Group("project_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func upsertAggregate(tx *gorm.DB, projectID string, day time.Time, tokens int64, cost float64) error {
	agg := &models.UsageAggregate{
		ProjectID:   projectID,
		Date:        datatypes.Date(day),
		TokensTotal: tokens,
		CostTotal:   cost,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"tokens_total", "cost_total", "updated_at"}),
	}).Create(agg).Error
}

// ReplaceDay recomputes every aggregate row for day from the events in
// [day, day+24h). Rows of that day with no remaining events drop to zero.
func (r *Repo) ReplaceDay(ctx context.Context, day time.Time) (int, error) {
	end := day.Add(24 * time.Hour)
	var written int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		totals, err := sumWindow(tx, day, end, "")
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(totals))
		for _, t := range totals {
			if err := upsertAggregate(tx, t.ProjectID, day, t.TokensTotal, t.CostTotal); err != nil {
				return err
			}
			ids = append(ids, t.ProjectID)
		}

		stale := tx.Model(&models.UsageAggregate{}).Where("date = ?", datatypes.Date(day))
		if len(ids) > 0 {
			stale = stale.Where("project_id NOT IN ?", ids)
		}
		if err := stale.Updates(map[string]any{"tokens_total": 0, "cost_total": 0}).Error; err != nil {
			return err
		}
		written = len(ids)
		return nil
	})
	return written, err
}

// ReplaceProjectDay recomputes the single (projectID, day) aggregate.
func (r *Repo) ReplaceProjectDay(ctx context.Context, projectID string, day time.Time) (*models.UsageAggregate, error) {
	end := day.Add(24 * time.Hour)
	var out models.UsageAggregate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		totals, err := sumWindow(tx, day, end, projectID)
		if err != nil {
			return err
		}
		var tokens int64
		var cost float64
		if len(totals) == 1 {
			tokens, cost = totals[0].TokensTotal, totals[0].CostTotal
		}
		if err := upsertAggregate(tx, projectID, day, tokens, cost); err != nil {
			return err
		}
		return tx.Where("project_id = ? AND date = ?", projectID, datatypes.Date(day)).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAggregates returns rows with from <= date <= to in date order.
func (r *Repo) ListAggregates(ctx context.Context, projectID string, from, to time.Time) ([]models.UsageAggregate, error) {
	q := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", datatypes.Date(from), datatypes.Date(to))
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var out []models.UsageAggregate
	if err := q.Order("date ASC, project_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
