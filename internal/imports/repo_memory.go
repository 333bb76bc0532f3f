package imports

import (
	"context"
	"sort"
	"sync"
	"time"

	"tuning-backend/internal/feedback"
)

// MemoryRepo keeps import records in memory. Fingerprint check-and-insert
// happens under one lock.
type MemoryRepo struct {
	mu            sync.Mutex
	byID          map[string]Record
	byFingerprint map[string]string
	feedback      *feedback.MemoryStore
}

// NewMemoryRepo constructs a MemoryRepo that writes completed rows to fb.
func NewMemoryRepo(fb *feedback.MemoryStore) *MemoryRepo {
	return &MemoryRepo{
		byID:          make(map[string]Record),
		byFingerprint: make(map[string]string),
		feedback:      fb,
	}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byFingerprint[rec.ContentFingerprint]; ok {
		return &DuplicateError{Existing: r.byID[id]}
	}
	r.byID[rec.ID] = rec
	r.byFingerprint[rec.ContentFingerprint] = rec.ID
	return nil
}

func (r *MemoryRepo) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	_, err := r.transition(ctx, id, StatusPending, func(rec *Record) {
		rec.Status = StatusProcessing
		rec.UpdatedAt = at
	})
	return err
}

func (r *MemoryRepo) Complete(ctx context.Context, id string, c Completion, at time.Time) (Record, error) {
	return r.transition(ctx, id, StatusProcessing, func(rec *Record) {
		r.feedback.AddBatch(c.Batch)
		rec.Status = StatusCompleted
		rec.StorageKey = c.StorageKey
		rec.Conversations = c.Conversations
		rec.Messages = c.Messages
		rec.FeedbackItems = len(c.Batch.Items)
		rec.Refinements = len(c.Batch.Refinements)
		rec.UpdatedAt = at
	})
}

func (r *MemoryRepo) Fail(ctx context.Context, id, message string, at time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status != StatusPending && rec.Status != StatusProcessing {
		return Record{}, ErrInvalidState
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = message
	rec.UpdatedAt = at
	r.byID[id] = rec
	return rec, nil
}

func (r *MemoryRepo) transition(ctx context.Context, id string, from Status, mutate func(*Record)) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status != from {
		return Record{}, ErrInvalidState
	}
	mutate(&rec)
	r.byID[id] = rec
	return rec, nil
}

func (r *MemoryRepo) live(id string) (Record, bool) {
	rec, ok := r.byID[id]
	if !ok || rec.DeletedAt != nil {
		return Record{}, false
	}
	return rec, true
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns live records newest first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		if rec.DeletedAt == nil {
			out = append(out, rec)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Record{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// SoftDelete hides the record and its feedback rows and frees the fingerprint.
func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(id)
	if !ok {
		return ErrNotFound
	}
	rec.DeletedAt = &at
	rec.UpdatedAt = at
	r.byID[id] = rec
	delete(r.byFingerprint, rec.ContentFingerprint)
	r.feedback.HideImport(id)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
