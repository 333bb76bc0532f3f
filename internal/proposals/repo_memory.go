package proposals

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores proposals in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Proposal
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Proposal)}
}

// Create stores the proposal.
func (r *MemoryRepo) Create(ctx context.Context, p Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = clone(p)
	return nil
}

// Get returns a proposal by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return clone(p), nil
}

// List returns proposals matching f, newest first.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f = f.normalized()

	r.mu.RLock()
	matched := make([]Proposal, 0, len(r.byID))
	for _, p := range r.byID {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.ProfileID != "" && p.ProfileID != f.ProfileID {
			continue
		}
		matched = append(matched, p)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if f.Offset >= len(matched) {
		return []Proposal{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]Proposal, 0, end-f.Offset)
	for _, p := range matched[f.Offset:end] {
		out = append(out, clone(p))
	}
	return out, nil
}

// UpdateStatus swaps the status only if it still equals u.Expected.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, u StatusUpdate) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[u.ID]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	if p.Status != u.Expected {
		return Proposal{}, &StateError{ProposalID: u.ID, Current: p.Status, Expected: u.Expected, Requested: u.To, Err: ErrStaleProposal}
	}
	p = applyUpdate(p, u)
	r.byID[u.ID] = p
	return clone(p), nil
}

var _ Repo = (*MemoryRepo)(nil)
