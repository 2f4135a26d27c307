package run

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

func TestListFilter_Matches(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rec := &Record{ID: "r1", Query: "What is Qdrant?", Status: agent.StatusCompleted, StartTime: now}

	tests := []struct {
		name   string
		filter ListFilter
		want   bool
	}{
		{"empty", ListFilter{}, true},
		{"status match", ListFilter{Status: []agent.Status{agent.StatusFailed, agent.StatusCompleted}}, true},
		{"status mismatch", ListFilter{Status: []agent.Status{agent.StatusFailed}}, false},
		{"query case insensitive", ListFilter{QueryPattern: "qdrant"}, true},
		{"query mismatch", ListFilter{QueryPattern: "redis"}, false},
		{"from before", ListFilter{FromTime: now.Add(-time.Minute)}, true},
		{"from after", ListFilter{FromTime: now.Add(time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_Duration(t *testing.T) {
	t.Parallel()

	start := time.Now()
	rec := &Record{StartTime: start}
	if rec.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0 for unfinished run", rec.Duration())
	}
	rec.EndTime = start.Add(2 * time.Second)
	if rec.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", rec.Duration())
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	start := time.Now()
	recs := []*Record{
		{Status: agent.StatusCompleted, StartTime: start, EndTime: start.Add(2 * time.Second), Result: agent.Result{StepsTaken: 3}},
		{Status: agent.StatusFailed, StartTime: start, EndTime: start.Add(4 * time.Second), Result: agent.Result{StepsTaken: 1}},
	}

	got := Summarize(recs)
	if got.TotalRuns != 2 || got.CompletedRuns != 1 || got.FailedRuns != 1 {
		t.Errorf("Summarize() counts = %+v", got)
	}
	if got.AverageDuration != 3*time.Second {
		t.Errorf("AverageDuration = %v, want 3s", got.AverageDuration)
	}
	if got.AverageSteps != 2 {
		t.Errorf("AverageSteps = %v, want 2", got.AverageSteps)
	}
	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", empty)
	}
}
