package usage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ErrWindowOpen marks an aggregation request for a day that has not ended.
// It is also a validation error.
var ErrWindowOpen = errors.New("aggregation window still open")

type Service struct {
	repo *Repo
	now  func() time.Time
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the clock used to decide whether a day has closed.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type NewEvent struct {
	UserID           *string
	ProjectID        *string
	SessionMessageID *string
	Model            string
	TokensPrompt     int
	TokensResponse   int
	CostUSD          float64
	LatencyMS        *int
	Feedback         *int
	// CreatedAt backdates the event; zero means now.
	CreatedAt time.Time
}

func validFeedback(v *int) bool {
	return v == nil || (*v >= -1 && *v <= 1)
}

func (s *Service) RecordEvent(ctx context.Context, in NewEvent) (*models.UsageEvent, error) {
	model := strings.TrimSpace(in.Model)
	switch {
	case model == "":
		return nil, common.Validationf("model required")
	case in.TokensPrompt < 0 || in.TokensResponse < 0:
		return nil, common.Validationf("token counts must be >= 0")
	case in.CostUSD < 0:
		return nil, common.Validationf("cost must be >= 0")
	case in.LatencyMS != nil && *in.LatencyMS < 0:
		return nil, common.Validationf("latency must be >= 0")
	case !validFeedback(in.Feedback):
		return nil, common.Validationf("feedback must be -1, 0 or 1")
	}

	e := &models.UsageEvent{
		UserID:           in.UserID,
		ProjectID:        in.ProjectID,
		SessionMessageID: in.SessionMessageID,
		Model:            model,
		TokensPrompt:     in.TokensPrompt,
		TokensResponse:   in.TokensResponse,
		CostUSD:          in.CostUSD,
		LatencyMS:        in.LatencyMS,
		Feedback:         in.Feedback,
	}
	if !in.CreatedAt.IsZero() {
		e.CreatedAt = in.CreatedAt.UTC()
	}
	if err := s.repo.CreateEvent(ctx, e); err != nil {
		return nil, db.Translate(err, "usage event")
	}
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*models.UsageEvent, error) {
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "usage event")
	}
	return e, nil
}

func (s *Service) ListEvents(ctx context.Context, projectID string, limit int) ([]models.UsageEvent, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return s.repo.ListEvents(ctx, projectID, limit)
}

// SetFeedback stores a thumbs up/down/neutral rating; nil clears it.
func (s *Service) SetFeedback(ctx context.Context, eventID string, feedback *int) (*models.UsageEvent, error) {
	if !validFeedback(feedback) {
		return nil, common.Validationf("feedback must be -1, 0 or 1")
	}
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := s.repo.SetFeedback(ctx, eventID, feedback); err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, eventID)
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) closedDay(day time.Time) (time.Time, error) {
	start := DayStart(day)
	if start.Add(24 * time.Hour).After(s.now().UTC()) {
		return time.Time{}, fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrWindowOpen, start.Format(time.DateOnly))
	}
	return start, nil
}

// AggregateDay rebuilds usage_aggregates for one closed UTC day and returns
// the number of projects that had events. Re-running it with no new events
// leaves the table unchanged.
func (s *Service) AggregateDay(ctx context.Context, day time.Time) (int, error) {
	start, err := s.closedDay(day)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.ReplaceDay(ctx, start)
	if err != nil {
		return 0, db.Translate(err, "usage aggregate")
	}
	log.Printf("[usage] aggregated date=%s projects=%d", start.Format(time.DateOnly), n)
	return n, nil
}

func (s *Service) AggregateProjectDay(ctx context.Context, projectID string, day time.Time) (*models.UsageAggregate, error) {
	if projectID == "" {
		return nil, common.Validationf("project_id required")
	}
	start, err := s.closedDay(day)
	if err != nil {
		return nil, err
	}
	agg, err := s.repo.ReplaceProjectDay(ctx, projectID, start)
	if err != nil {
		return nil, db.Translate(err, "project "+projectID)
	}
	return agg, nil
}

// ListAggregates returns aggregates for from..to inclusive.
func (s *Service) ListAggregates(ctx context.Context, projectID string, from, to time.Time) ([]models.UsageAggregate, error) {
	from, to = DayStart(from), DayStart(to)
	if to.Before(from) {
		return nil, common.Validationf("to must not be before from")
	}
	return s.repo.ListAggregates(ctx, projectID, from, to)
}
