package store

import (
	"context"
	"sync"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// MemoryStore is an api.Store backed by an in-memory slice, guarded by a
// mutex the same way the teacher's InMemoryStore guards its two maps. It
// is the default main store for RunLocally and the natural choice for
// tests and short-lived scripts.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*api.Record
}

var _ api.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Connect(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                       { return nil }

func (s *MemoryStore) Query(ctx context.Context, filter api.Filter, properties []string) (api.RecordIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*api.Record
	for _, r := range s.records {
		if matches(r, filter) {
			matched = append(matched, projectRecord(r, properties))
		}
	}
	return &sliceIter{records: matched}, nil
}

func (s *MemoryStore) QueryOne(ctx context.Context, filter api.Filter, properties []string) (*api.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if matches(r, filter) {
			return projectRecord(r, properties), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Update(ctx context.Context, filter api.Filter, record *api.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if matches(r, filter) {
			s.records[i] = record
			return nil
		}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, filter api.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0:0]
	for _, r := range s.records {
		if !matches(r, filter) {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, filter api.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Distinct(ctx context.Context, field string, filter api.Filter) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []any
	for _, r := range s.records {
		if !matches(r, filter) {
			continue
		}
		v, ok := fieldValue(r, field)
		if !ok {
			continue
		}
		key := stringify(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}

type sliceIter struct {
	records []*api.Record
	pos     int
}

func (it *sliceIter) Next(ctx context.Context) (*api.Record, error) {
	if it.pos >= len(it.records) {
		return nil, nil
	}
	r := it.records[it.pos]
	it.pos++
	return r, nil
}

func (it *sliceIter) Close() error { return nil }
