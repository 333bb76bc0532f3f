package feedback

import (
	"context"
	"testing"
	"time"

	"tuning-backend/internal/shared/timewindow"
)

func TestMemoryStoreWindowAndHide(t *testing.T) {
	store := NewMemoryStore()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }

	store.AddBatch(Batch{
		Items: []Item{
			{ID: "a", ImportID: "imp-1", Rating: RatingPositive, OccurredAt: day(2)},
			{ID: "b", ImportID: "imp-1", Rating: RatingNegative, OccurredAt: day(9)},
		},
		Refinements: []Refinement{{ID: "r", ImportID: "imp-1", OccurredAt: day(3)}},
	})
	store.AddBatch(Batch{
		Items: []Item{{ID: "c", ImportID: "imp-2", Rating: RatingPositive, OccurredAt: day(1)}},
	})

	w := timewindow.Window{From: day(1), To: day(5)}
	got, err := store.ListWindow(context.Background(), w)
	if err != nil {
		t.Fatalf("ListWindow: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].ID != "c" || got.Items[1].ID != "a" {
		t.Fatalf("unexpected items %+v", got.Items)
	}
	if len(got.Refinements) != 1 {
		t.Fatalf("expected 1 refinement, got %d", len(got.Refinements))
	}

	store.HideImport("imp-1")
	got, err = store.ListWindow(context.Background(), w)
	if err != nil {
		t.Fatalf("ListWindow: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ID != "c" || len(got.Refinements) != 0 {
		t.Fatalf("hidden import rows must be excluded, got %+v", got)
	}
}

func TestServiceRejectsInvalidWindow(t *testing.T) {
	svc := &Service{Repo: NewMemoryStore()}
	now := time.Now()
	if _, err := svc.Aggregate(context.Background(), timewindow.Window{From: now, To: now.Add(-time.Hour)}); err == nil {
		t.Fatalf("expected invalid window error")
	}
}
