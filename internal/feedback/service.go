package feedback

import (
	"context"

	"tuning-backend/internal/shared/timewindow"
)

// Service serves window reads and rollups over the feedback store.
type Service struct {
	Repo Repo
}

// Window returns the raw rows inside w.
func (s *Service) Window(ctx context.Context, w timewindow.Window) (Batch, error) {
	if err := w.Validate(); err != nil {
		return Batch{}, err
	}
	return s.Repo.ListWindow(ctx, w.UTC())
}

// Aggregate rolls up the rows inside w.
func (s *Service) Aggregate(ctx context.Context, w timewindow.Window) (Aggregate, error) {
	b, err := s.Window(ctx, w)
	if err != nil {
		return Aggregate{}, err
	}
	return Rollup(b), nil
}
