package proposals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/telemetry"
	"tuning-backend/internal/shared/timewindow"
)

// Service contains proposal store business logic.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create validates and inserts p as pending.
func (s *Service) Create(ctx context.Context, p Proposal) (Proposal, error) {
	w := timewindow.Window{From: p.WindowStart, To: p.WindowEnd}
	if err := w.Validate(); err != nil {
		return Proposal{}, err
	}
	p.GovernanceLinks = dedupeLinks(p.GovernanceLinks)
	if err := validateProposal(p); err != nil {
		return Proposal{}, err
	}

	now := s.now()
	p.ID = uuid.NewString()
	p.Status = StatusPending
	p.WindowStart = w.From.UTC()
	p.WindowEnd = w.To.UTC()
	p.SelectedIndices = nil
	p.ReviewedBy = ""
	p.ReviewedAt = nil
	p.AppliedAt = nil
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Recommendations == nil {
		p.Recommendations = []Recommendation{}
	}
	if p.Metrics == nil {
		p.Metrics = map[string]float64{}
	}

	if err := s.Repo.Create(ctx, p); err != nil {
		return Proposal{}, err
	}
	metrics.IncTransition(string(StatusPending))
	telemetry.Info("proposal.created", map[string]any{
		"proposal_id":     p.ID,
		"profile_id":      p.ProfileID,
		"recommendations": len(p.Recommendations),
		"dry_run":         p.DryRun,
	})
	return p, nil
}

// Get returns the proposal or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Proposal, error) {
	if strings.TrimSpace(id) == "" {
		return Proposal{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// ListByStatus lists proposals newest first.
func (s *Service) ListByStatus(ctx context.Context, f Filter) ([]Proposal, error) {
	if f.Status != "" {
		if _, ok := ParseStatus(string(f.Status)); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
		}
	}
	return s.Repo.List(ctx, f)
}

// TransitionRequest is a reviewer decision that does not touch settings.
type TransitionRequest struct {
	ID         string
	To         Status
	Expected   Status
	ReviewerID string
	// Selected is required when accepting and ignored when rejecting.
	Selected []int
}

// Transition moves a proposal to accepted or rejected with optimistic
// concurrency on its status. Moves into applied go through the applier.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (Proposal, error) {
	if req.Expected == "" {
		return Proposal{}, fmt.Errorf("%w: expected status is required", ErrInvalidInput)
	}
	p, err := s.Repo.Get(ctx, req.ID)
	if err != nil {
		return Proposal{}, err
	}
	if p.Status != req.Expected {
		return Proposal{}, &StateError{ProposalID: p.ID, Current: p.Status, Expected: req.Expected, Requested: req.To, Err: ErrStaleProposal}
	}
	if req.To == StatusApplied || !CanTransition(p.Status, req.To) {
		return Proposal{}, &StateError{ProposalID: p.ID, Current: p.Status, Expected: req.Expected, Requested: req.To, Err: ErrInvalidProposalState}
	}

	var selected []int
	if req.To == StatusAccepted {
		selected, err = NormalizeSelection(p.ID, req.Selected, len(p.Recommendations))
		if err != nil {
			return Proposal{}, err
		}
	}

	updated, err := s.Repo.UpdateStatus(ctx, StatusUpdate{
		ID:         p.ID,
		To:         req.To,
		Expected:   req.Expected,
		ReviewerID: req.ReviewerID,
		At:         s.now(),
		Selected:   selected,
	})
	if err != nil {
		return Proposal{}, err
	}
	metrics.IncTransition(string(req.To))
	telemetry.Info("proposal.transition", map[string]any{
		"proposal_id": p.ID,
		"from":        req.Expected,
		"to":          req.To,
		"reviewer_id": req.ReviewerID,
		"selected":    selected,
	})
	return updated, nil
}

// dedupeLinks trims links and drops blanks and repeats, keeping first-seen order.
func dedupeLinks(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
