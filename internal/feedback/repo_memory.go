package feedback

import (
	"context"
	"sort"
	"sync"

	"tuning-backend/internal/shared/timewindow"
)

// MemoryStore keeps feedback rows in memory and is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	items       []Item
	refinements []Refinement
	hidden      map[string]struct{}
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hidden: make(map[string]struct{})}
}

// AddBatch stores every row of an import in one step.
func (s *MemoryStore) AddBatch(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, b.Items...)
	s.refinements = append(s.refinements, b.Refinements...)
}

// HideImport excludes the rows of a soft-deleted import from every read.
func (s *MemoryStore) HideImport(importID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[importID] = struct{}{}
}

// ListWindow returns visible rows whose occurredAt lies inside w, oldest first.
func (s *MemoryStore) ListWindow(ctx context.Context, w timewindow.Window) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Batch
	for _, it := range s.items {
		if _, gone := s.hidden[it.ImportID]; gone || !w.Contains(it.OccurredAt) {
			continue
		}
		out.Items = append(out.Items, it)
	}
	for _, r := range s.refinements {
		if _, gone := s.hidden[r.ImportID]; gone || !w.Contains(r.OccurredAt) {
			continue
		}
		out.Refinements = append(out.Refinements, r)
	}
	sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].OccurredAt.Before(out.Items[j].OccurredAt) })
	sort.SliceStable(out.Refinements, func(i, j int) bool {
		return out.Refinements[i].OccurredAt.Before(out.Refinements[j].OccurredAt)
	})
	return out, nil
}

var _ Repo = (*MemoryStore)(nil)
