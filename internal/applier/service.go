package applier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tuning-backend/internal/proposals"
	"tuning-backend/internal/settings"
	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/telemetry"
)

// Service applies a selected subset of a proposal's recommendations.
type Service struct {
	UoW UnitOfWork
	Now func() time.Time
	// NewID generates audit row IDs. Defaults to uuid.NewString.
	NewID func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Apply writes the selected recommendations in ascending index order and marks
// the proposal applied. Any failure rolls back every write of the call.
func (s *Service) Apply(ctx context.Context, req proposals.ApplyRequest) (proposals.ApplyResult, error) {
	var result proposals.ApplyResult
	at := s.now()

	err := s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		result = proposals.ApplyResult{}

		p, err := tx.LockProposal(ctx, req.ProposalID)
		if err != nil {
			return err
		}
		// A terminal proposal can never be applied, whatever the caller last saw.
		if !proposals.CanTransition(p.Status, proposals.StatusApplied) {
			return &proposals.StateError{ProposalID: p.ID, Current: p.Status, Expected: req.ExpectedStatus, Requested: proposals.StatusApplied, Err: proposals.ErrInvalidProposalState}
		}
		if req.ExpectedStatus != "" && p.Status != req.ExpectedStatus {
			return &proposals.StateError{ProposalID: p.ID, Current: p.Status, Expected: req.ExpectedStatus, Requested: proposals.StatusApplied, Err: proposals.ErrStaleProposal}
		}

		requested := req.Selected
		if requested == nil && p.Status == proposals.StatusAccepted {
			requested = p.SelectedIndices
		}
		selected, err := proposals.NormalizeSelection(p.ID, requested, len(p.Recommendations))
		if err != nil {
			return err
		}

		dryRun := req.DryRun || p.DryRun
		changes := make([]proposals.AppliedChange, 0, len(selected))
		for _, idx := range selected {
			change, err := s.applyOne(ctx, tx, p, idx, req.ReviewerID, at, dryRun)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		result.Selected = selected
		result.Changes = changes
		result.DryRun = dryRun
		if dryRun {
			result.Proposal = p
			return nil
		}

		updated, err := tx.UpdateStatus(ctx, proposals.StatusUpdate{
			ID:         p.ID,
			To:         proposals.StatusApplied,
			Expected:   p.Status,
			ReviewerID: req.ReviewerID,
			At:         at,
			Selected:   selected,
		})
		if err != nil {
			return err
		}
		result.Proposal = updated
		return nil
	})
	if err != nil {
		s.logFailure(req, err)
		return proposals.ApplyResult{}, err
	}

	if result.DryRun {
		metrics.IncApply(metrics.OutcomeDryRun, 0)
	} else {
		metrics.IncApply(metrics.OutcomeApplied, len(result.Changes))
		metrics.IncTransition(string(proposals.StatusApplied))
	}
	telemetry.Info("proposal.apply", map[string]any{
		"proposal_id": req.ProposalID,
		"reviewer_id": req.ReviewerID,
		"selected":    result.Selected,
		"writes":      len(result.Changes),
		"dry_run":     result.DryRun,
	})
	return result, nil
}

func (s *Service) applyOne(ctx context.Context, tx Tx, p proposals.Proposal, idx int, reviewerID string, at time.Time, dryRun bool) (proposals.AppliedChange, error) {
	rec := p.Recommendations[idx]
	ch, err := rec.Change()
	if err != nil {
		return proposals.AppliedChange{}, fmt.Errorf("recommendation %d: %w", idx, err)
	}

	current, err := tx.ReadSetting(ctx, p.ProfileID, rec.Setting)
	if err != nil {
		return proposals.AppliedChange{}, fmt.Errorf("read setting %s: %w", rec.Setting, err)
	}
	if !settings.SameValue(current.Value, rec.From) {
		return proposals.AppliedChange{}, &proposals.ChangeError{
			ProposalID: p.ID, Index: idx, Setting: rec.Setting,
			Expected: rec.From, Actual: current.Value, Err: proposals.ErrSettingDrift,
		}
	}
	next, err := proposals.NextValue(current.Value, ch)
	if err != nil {
		return proposals.AppliedChange{}, err
	}
	if settings.SameValue(current.Value, next) {
		return proposals.AppliedChange{}, &proposals.ChangeError{
			ProposalID: p.ID, Index: idx, Setting: rec.Setting,
			Expected: rec.From, Actual: current.Value, Err: proposals.ErrNoopChange,
		}
	}

	change := proposals.AppliedChange{
		Index:    idx,
		Setting:  rec.Setting,
		Action:   rec.Action,
		Previous: current.Value,
		Value:    next,
	}
	if dryRun {
		return change, nil
	}

	index := idx
	if err := tx.WriteSetting(ctx, settings.Setting{
		ProfileID:           p.ProfileID,
		Name:                rec.Setting,
		Value:               next,
		UpdatedBy:           reviewerID,
		UpdatedAt:           at,
		ProposalID:          p.ID,
		RecommendationIndex: &index,
	}); err != nil {
		if errors.Is(err, settings.ErrConcurrentChange) {
			return proposals.AppliedChange{}, &proposals.ChangeError{
				ProposalID: p.ID, Index: idx, Setting: rec.Setting,
				Expected: rec.From, Err: proposals.ErrSettingDrift,
			}
		}
		return proposals.AppliedChange{}, fmt.Errorf("write setting %s: %w", rec.Setting, err)
	}
	if err := tx.AppendAudit(ctx, settings.AuditEntry{
		ID:                  s.newID(),
		ProfileID:           p.ProfileID,
		Setting:             rec.Setting,
		ProposalID:          p.ID,
		RecommendationIndex: idx,
		Action:              string(rec.Action),
		Previous:            current.Value,
		Value:               next,
		AppliedBy:           reviewerID,
		AppliedAt:           at,
	}); err != nil {
		return proposals.AppliedChange{}, fmt.Errorf("append audit %s: %w", rec.Setting, err)
	}
	return change, nil
}

func (s *Service) logFailure(req proposals.ApplyRequest, err error) {
	fields := map[string]any{
		"proposal_id": req.ProposalID,
		"reviewer_id": req.ReviewerID,
		"dry_run":     req.DryRun,
		"error":       err.Error(),
	}
	var changeErr *proposals.ChangeError
	var stateErr *proposals.StateError
	var selErr *proposals.SelectionError
	switch {
	case errors.As(err, &changeErr):
		fields["index"] = changeErr.Index
		fields["setting"] = changeErr.Setting
	case errors.As(err, &stateErr), errors.As(err, &selErr), errors.Is(err, proposals.ErrNotFound):
		telemetry.Warn("proposal.apply_rejected", fields)
		metrics.IncApply(metrics.OutcomeError, 0)
		return
	}
	telemetry.Warn("proposal.apply_rolled_back", fields)
	metrics.IncApply(metrics.OutcomeRolledBack, 0)
}

var _ proposals.Applier = (*Service)(nil)
