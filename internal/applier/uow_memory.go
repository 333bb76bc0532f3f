package applier

import (
	"context"
	"sync"

	"tuning-backend/internal/proposals"
	"tuning-backend/internal/settings"
)

// MemoryUnitOfWork serializes applies behind one store-wide lock and undoes
// setting and audit writes when the apply fails.
type MemoryUnitOfWork struct {
	mu        sync.Mutex
	Proposals *proposals.MemoryRepo
	Settings  *settings.MemoryStore
}

// NewMemoryUnitOfWork constructs a MemoryUnitOfWork over the given stores.
func NewMemoryUnitOfWork(p *proposals.MemoryRepo, s *settings.MemoryStore) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{Proposals: p, Settings: s}
}

// Do runs fn under the store lock.
func (u *MemoryUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	tx := &memoryTx{proposals: u.Proposals, settings: u.Settings}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memoryTx struct {
	proposals *proposals.MemoryRepo
	settings  *settings.MemoryStore
	undo      []func()
}

func (t *memoryTx) LockProposal(ctx context.Context, id string) (proposals.Proposal, error) {
	return t.proposals.Get(ctx, id)
}

func (t *memoryTx) ReadSetting(ctx context.Context, profileID, name string) (settings.Setting, error) {
	if err := ctx.Err(); err != nil {
		return settings.Setting{}, err
	}
	st, ok := t.settings.Get(profileID, name)
	if !ok {
		return settings.Setting{ProfileID: profileID, Name: name}, nil
	}
	return st, nil
}

func (t *memoryTx) WriteSetting(ctx context.Context, st settings.Setting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev, existed := t.settings.Get(st.ProfileID, st.Name)
	t.settings.Put(st)
	t.undo = append(t.undo, func() {
		if existed {
			t.settings.Put(prev)
			return
		}
		t.settings.Delete(st.ProfileID, st.Name)
	})
	return nil
}

func (t *memoryTx) AppendAudit(ctx context.Context, e settings.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.settings.AppendAudit(e)
	t.undo = append(t.undo, func() { t.settings.RemoveAudit(e.ID) })
	return nil
}

// UpdateStatus is always the last step of an apply, so it needs no undo entry.
func (t *memoryTx) UpdateStatus(ctx context.Context, u proposals.StatusUpdate) (proposals.Proposal, error) {
	return t.proposals.UpdateStatus(ctx, u)
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
