package settings

import (
	"context"
	"sort"
	"sync"
)

type settingKey struct {
	profileID string
	name      string
}

// MemoryStore holds settings and the audit log in memory. The applier's
// in-memory unit of work serializes writers and undoes them on failure.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[settingKey]Setting
	audit    []AuditEntry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[settingKey]Setting)}
}

// Get returns the setting and whether it exists.
func (s *MemoryStore) Get(profileID, name string) (Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[settingKey{profileID, name}]
	return st, ok
}

// Put inserts or replaces a setting.
func (s *MemoryStore) Put(st Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settingKey{st.ProfileID, st.Name}] = st
}

// Delete drops a setting entirely.
func (s *MemoryStore) Delete(profileID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, settingKey{profileID, name})
}

// AppendAudit adds an entry to the audit log.
func (s *MemoryStore) AppendAudit(e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
}

// RemoveAudit drops an entry written by a unit of work that is rolling back.
func (s *MemoryStore) RemoveAudit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].ID == id {
			s.audit = append(s.audit[:i], s.audit[i+1:]...)
			return
		}
	}
}

// ListByProfile returns the profile's settings ordered by name.
func (s *MemoryStore) ListByProfile(ctx context.Context, profileID string) ([]Setting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Setting{}
	for k, st := range s.settings {
		if k.profileID == profileID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListAudit returns the audit entries of a proposal in write order.
func (s *MemoryStore) ListAudit(ctx context.Context, proposalID string) ([]AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []AuditEntry{}
	for _, e := range s.audit {
		if e.ProposalID == proposalID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ Reader = (*MemoryStore)(nil)
