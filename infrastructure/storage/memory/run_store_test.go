package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/run"
)

func newRecord(id, query string, status agent.Status, start time.Time) *run.Record {
	return &run.Record{
		ID:        id,
		Query:     query,
		Status:    status,
		StartTime: start,
		EndTime:   start.Add(time.Second),
		Result: agent.Result{
			Answer:    "answer to " + query,
			Sources:   []agent.Source{{Source: "go.dev", Title: "Go", Score: 0.8}},
			ToolsUsed: []string{"vector_search"},
		},
	}
}

func TestRunStore_SaveGetDelete(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	rec := newRecord("run-1", "what is go?", agent.StatusCompleted, time.Now())

	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, rec); !errors.Is(err, run.ErrRunExists) {
		t.Errorf("Save() duplicate error = %v, want ErrRunExists", err)
	}
	if err := store.Save(ctx, &run.Record{}); !errors.Is(err, run.ErrInvalidRunID) {
		t.Errorf("Save() empty id error = %v, want ErrInvalidRunID", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Result.Answer != rec.Result.Answer || len(got.Result.Sources) != 1 {
		t.Errorf("Get() = %+v, want round-tripped record", got.Result)
	}

	got.Result.Answer = "mutated"
	again, _ := store.Get(ctx, "run-1")
	if again.Result.Answer == "mutated" {
		t.Error("store shares state with callers")
	}

	if err := store.Delete(ctx, "run-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "run-1"); !errors.Is(err, run.ErrRunNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrRunNotFound", err)
	}
	if err := store.Delete(ctx, "run-1"); !errors.Is(err, run.ErrRunNotFound) {
		t.Errorf("Delete() error = %v, want ErrRunNotFound", err)
	}
}

func TestRunStore_List(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	base := time.Now()
	for _, rec := range []*run.Record{
		newRecord("a", "what is go?", agent.StatusCompleted, base),
		newRecord("b", "what is qdrant?", agent.StatusFailed, base.Add(time.Minute)),
		newRecord("c", "go generics", agent.StatusCompleted, base.Add(2*time.Minute)),
	} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter run.ListFilter
		want   []string
	}{
		{"all newest first", run.ListFilter{}, []string{"c", "b", "a"}},
		{"limit", run.ListFilter{Limit: 2}, []string{"c", "b"}},
		{"status", run.ListFilter{Status: []agent.Status{agent.StatusCompleted}}, []string{"c", "a"}},
		{"query", run.ListFilter{QueryPattern: "GO"}, []string{"c", "a"}},
		{"from time", run.ListFilter{FromTime: base.Add(30 * time.Second)}, []string{"c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recs, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("List() returned %d records, want %d", len(recs), len(tt.want))
			}
			for i, id := range tt.want {
				if recs[i].ID != id {
					t.Errorf("recs[%d].ID = %s, want %s", i, recs[i].ID, id)
				}
			}
		})
	}
}
