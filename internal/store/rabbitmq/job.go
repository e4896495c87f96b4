package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AggregationJob asks a worker to rebuild usage aggregates for one UTC day,
// optionally limited to a single project.
type AggregationJob struct {
	Date      string `json:"date"`
	ProjectID string `json:"project_id,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
}

func NewAggregationJob(day time.Time, projectID string) AggregationJob {
	return AggregationJob{Date: day.UTC().Format(time.DateOnly), ProjectID: projectID}
}

// Day parses the job date as midnight UTC.
func (j AggregationJob) Day() (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, j.Date, time.UTC)
}

func DecodeJob(body []byte) (AggregationJob, error) {
	var j AggregationJob
	if err := json.Unmarshal(body, &j); err != nil {
		return AggregationJob{}, err
	}
	if j.Date == "" {
		return AggregationJob{}, errors.New("job without date")
	}
	if _, err := j.Day(); err != nil {
		return AggregationJob{}, fmt.Errorf("job date %q: %w", j.Date, err)
	}
	return j, nil
}

// RetryDelay backs off linearly: 10s, 20s, 30s...
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * 10 * time.Second
}
