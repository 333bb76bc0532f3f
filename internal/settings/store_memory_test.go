package settings

import (
	"context"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestMemoryStorePutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Setting{ProfileID: "p1", Name: "tone", Value: strPtr("warm")})
	s.Put(Setting{ProfileID: "p2", Name: "tone", Value: strPtr("formal")})

	got, ok := s.Get("p1", "tone")
	if !ok || *got.Value != "warm" {
		t.Fatalf("unexpected setting %+v ok=%v", got, ok)
	}
	s.Delete("p1", "tone")
	if _, ok := s.Get("p1", "tone"); ok {
		t.Fatalf("expected deleted setting to be absent")
	}
	if _, ok := s.Get("p2", "tone"); !ok {
		t.Fatalf("other profile must be untouched")
	}
}

func TestMemoryStoreAudit(t *testing.T) {
	s := NewMemoryStore()
	s.AppendAudit(AuditEntry{ID: "a1", ProposalID: "prop-1", RecommendationIndex: 0})
	s.AppendAudit(AuditEntry{ID: "a2", ProposalID: "prop-1", RecommendationIndex: 2})
	s.AppendAudit(AuditEntry{ID: "a3", ProposalID: "prop-2"})
	s.RemoveAudit("a2")

	got, err := s.ListAudit(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("unexpected audit %+v", got)
	}
}

func TestListByProfileSorted(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Setting{ProfileID: "p1", Name: "z"})
	s.Put(Setting{ProfileID: "p1", Name: "a"})
	got, err := s.ListByProfile(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "z" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestSameValue(t *testing.T) {
	if !SameValue(nil, strPtr("")) {
		t.Fatalf("absent and empty must compare equal")
	}
	if SameValue(strPtr("a"), strPtr("b")) {
		t.Fatalf("different values must not compare equal")
	}
	if !SameValue(strPtr("a"), strPtr("a")) {
		t.Fatalf("equal values must compare equal")
	}
}
