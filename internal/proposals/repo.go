package proposals

import (
	"context"
	"slices"
	"time"
)

// StatusUpdate is a compare-and-swap on a proposal's status.
type StatusUpdate struct {
	ID         string
	To         Status
	Expected   Status
	ReviewerID string
	At         time.Time
	// Selected replaces the persisted selection when non-nil.
	Selected []int
}

// Repo defines persistence operations for proposals.
type Repo interface {
	Create(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id string) (Proposal, error)
	List(ctx context.Context, f Filter) ([]Proposal, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (Proposal, error)
}

// applyUpdate stamps u onto p. Reviewer fields are kept when a proposal that
// was already reviewed moves to applied.
func applyUpdate(p Proposal, u StatusUpdate) Proposal {
	at := u.At
	p.Status = u.To
	p.UpdatedAt = at
	if u.Selected != nil {
		p.SelectedIndices = slices.Clone(u.Selected)
	}
	if u.To == StatusApplied {
		p.AppliedAt = &at
		if p.ReviewedBy != "" && p.ReviewedAt != nil {
			return p
		}
	}
	p.ReviewedBy = u.ReviewerID
	p.ReviewedAt = &at
	return p
}

func clone(p Proposal) Proposal {
	p.Recommendations = slices.Clone(p.Recommendations)
	p.GovernanceLinks = slices.Clone(p.GovernanceLinks)
	p.SelectedIndices = slices.Clone(p.SelectedIndices)
	if p.Metrics != nil {
		m := make(map[string]float64, len(p.Metrics))
		for k, v := range p.Metrics {
			m[k] = v
		}
		p.Metrics = m
	}
	return p
}
