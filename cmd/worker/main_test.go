package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
)

type fakeAggregator struct {
	days     []time.Time
	projects []string
	err      error
}

func (f *fakeAggregator) AggregateDay(ctx context.Context, day time.Time) (int, error) {
	f.days = append(f.days, day)
	return 1, f.err
}

func (f *fakeAggregator) AggregateProjectDay(ctx context.Context, projectID string, day time.Time) (*models.UsageAggregate, error) {
	f.days = append(f.days, day)
	f.projects = append(f.projects, projectID)
	return &models.UsageAggregate{ProjectID: projectID}, f.err
}

type fakeLocks struct {
	held     map[string]bool
	released []string
}

func (f *fakeLocks) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if f.held[name] {
		return nil, false, nil
	}
	f.held[name] = true
	return func(context.Context) error {
		delete(f.held, name)
		f.released = append(f.released, name)
		return nil
	}, true, nil
}

func TestHandleJob(t *testing.T) {
	agg := &fakeAggregator{}
	locks := &fakeLocks{held: map[string]bool{}}
	job := rabbitmq.NewAggregationJob(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), "")

	if err := handleJob(context.Background(), agg, locks, job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(agg.days) != 1 || agg.days[0].Format(time.DateOnly) != "2025-03-14" {
		t.Fatalf("aggregated days = %v", agg.days)
	}
	if len(locks.released) != 1 || len(locks.held) != 0 {
		t.Fatalf("lock not released: held=%v released=%v", locks.held, locks.released)
	}

	job.ProjectID = "p1"
	if err := handleJob(context.Background(), agg, nil, job); err != nil {
		t.Fatalf("handle project job: %v", err)
	}
	if len(agg.projects) != 1 || agg.projects[0] != "p1" {
		t.Fatalf("project jobs = %v", agg.projects)
	}
}

func TestHandleJob_Locked(t *testing.T) {
	agg := &fakeAggregator{}
	locks := &fakeLocks{held: map[string]bool{"usage-aggregate:2025-03-14": true}}
	job := rabbitmq.AggregationJob{Date: "2025-03-14"}

	if err := handleJob(context.Background(), agg, locks, job); !errors.Is(err, errLocked) {
		t.Fatalf("want errLocked, got %v", err)
	}
	if len(agg.days) != 0 {
		t.Fatalf("aggregated while locked")
	}
}

func TestShouldRetry(t *testing.T) {
	open := fmt.Errorf("%w: %w", common.ErrValidation, usage.ErrWindowOpen)
	cases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"transient", errors.New("connection reset"), 0, true},
		{"locked", errLocked, 2, true},
		{"exhausted", errLocked, 3, false},
		{"open window", open, 1, true},
		{"missing project", fmt.Errorf("%w: project", common.ErrNotFound), 0, false},
		{"bad input", common.Validationf("project_id required"), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := rabbitmq.AggregationJob{Date: "2025-03-14", Attempt: tc.attempt}
			if got := shouldRetry(tc.err, job, 3); got != tc.want {
				t.Fatalf("shouldRetry = %v, want %v", got, tc.want)
			}
		})
	}
}
