// Package run provides the domain model for answered run history.
package run

import (
	"context"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// Record is the persisted summary of one answered query.
type Record struct {
	ID             string       `json:"id"`
	Query          string       `json:"query"`
	SessionContext string       `json:"session_context,omitempty"`
	Status         agent.Status `json:"status"`
	Result         agent.Result `json:"result"`
	Steps          []agent.Step `json:"steps,omitempty"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
}

// Duration returns how long the run took.
func (r *Record) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Store persists run records.
// Implementations may be in-memory, SQLite, or any other backend.
type Store interface {
	// Save persists a new record.
	Save(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
}

// ListFilter specifies criteria for listing records.
type ListFilter struct {
	// Status filters by run status (empty means all).
	Status []agent.Status

	// QueryPattern filters by query text (substring match).
	QueryPattern string

	// FromTime filters runs started at or after this time.
	FromTime time.Time

	// Limit is the maximum number of records to return (0 = no limit).
	Limit int
}

// Matches reports whether rec satisfies the filter, ignoring Limit.
func (f ListFilter) Matches(rec *Record) bool {
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if rec.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.QueryPattern != "" && !containsFold(rec.Query, f.QueryPattern) {
		return false
	}
	if !f.FromTime.IsZero() && rec.StartTime.Before(f.FromTime) {
		return false
	}
	return true
}

// Summary holds aggregate statistics over a set of records.
type Summary struct {
	TotalRuns       int           `json:"total_runs"`
	CompletedRuns   int           `json:"completed_runs"`
	FailedRuns      int           `json:"failed_runs"`
	AverageDuration time.Duration `json:"average_duration"`
	AverageSteps    float64       `json:"average_steps"`
}

// Summarize aggregates recs.
func Summarize(recs []*Record) Summary {
	var s Summary
	var total time.Duration
	var steps int
	for _, rec := range recs {
		s.TotalRuns++
		switch rec.Status {
		case agent.StatusCompleted:
			s.CompletedRuns++
		case agent.StatusFailed:
			s.FailedRuns++
		}
		total += rec.Duration()
		steps += rec.Result.StepsTaken
	}
	if s.TotalRuns > 0 {
		s.AverageDuration = total / time.Duration(s.TotalRuns)
		s.AverageSteps = float64(steps) / float64(s.TotalRuns)
	}
	return s
}
