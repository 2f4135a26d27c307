package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/run"
)

// RunStore is an in-memory implementation of run.Store.
// Records are held as JSON so callers never share mutable state with the store.
type RunStore struct {
	runs map[string][]byte
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string][]byte),
	}
}

// Save persists a new record.
func (s *RunStore) Save(ctx context.Context, rec *run.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.ID == "" {
		return run.ErrInvalidRunID
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[rec.ID]; exists {
		return run.ErrRunExists
	}
	s.runs[rec.ID] = data
	return nil
}

// Get retrieves a record by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*run.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, run.ErrInvalidRunID
	}

	s.mu.RLock()
	data, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, run.ErrRunNotFound
	}

	var rec run.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record by ID.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return run.ErrInvalidRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[id]; !exists {
		return run.ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

// List returns records matching the filter, newest first.
func (s *RunStore) List(ctx context.Context, filter run.ListFilter) ([]*run.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*run.Record, 0, len(s.runs))
	for _, data := range s.runs {
		var rec run.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if filter.Matches(&rec) {
			result = append(result, &rec)
		}
	}

	slices.SortFunc(result, func(a, b *run.Record) int {
		return b.StartTime.Compare(a.StartTime)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

var _ run.Store = (*RunStore)(nil)
