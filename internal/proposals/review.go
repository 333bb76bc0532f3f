package proposals

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffRow is the display form of one recommendation.
type DiffRow struct {
	Index      int     `json:"index"`
	Setting    string  `json:"setting"`
	Action     Action  `json:"action"`
	From       *string `json:"from"`
	To         *string `json:"to"`
	Proposed   *string `json:"proposed"`
	Diff       string  `json:"diff,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Selected   bool    `json:"selected"`
}

// View is what a reviewer sees for a proposal. It is computed per request and never stored.
type View struct {
	ProposalID string    `json:"proposalId"`
	Status     Status    `json:"status"`
	Rows       []DiffRow `json:"rows"`
	Selected   []int     `json:"selected"`
}

// BuildView renders the per-recommendation diff. When selected is nil the
// persisted selection is shown, or every index if none was persisted.
// Out-of-range indices are ignored here; submission validates them.
func BuildView(p Proposal, selected []int) View {
	if selected == nil {
		selected = p.SelectedIndices
	}
	if selected == nil {
		selected = p.AllIndices()
	}
	marked := make(map[int]bool, len(selected))
	for _, i := range selected {
		if i >= 0 && i < len(p.Recommendations) {
			marked[i] = true
		}
	}

	v := View{ProposalID: p.ID, Status: p.Status, Rows: make([]DiffRow, 0, len(p.Recommendations)), Selected: []int{}}
	for i, rec := range p.Recommendations {
		row := DiffRow{
			Index:      i,
			Setting:    rec.Setting,
			Action:     rec.Action,
			From:       rec.From,
			To:         rec.To,
			Confidence: rec.Confidence,
			Rationale:  rec.Rationale,
			Selected:   marked[i],
		}
		if ch, err := rec.Change(); err == nil {
			if next, err := NextValue(rec.From, ch); err == nil {
				row.Proposed = next
				row.Diff = cmp.Diff(lines(rec.From), lines(next))
			}
		}
		if row.Selected {
			v.Selected = append(v.Selected, i)
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func lines(v *string) []string {
	if v == nil || *v == "" {
		return []string{}
	}
	return strings.Split(*v, "\n")
}

// DecisionKind is the reviewer's intent.
type DecisionKind string

const (
	DecisionAccept DecisionKind = "accept"
	DecisionReject DecisionKind = "reject"
	DecisionApply  DecisionKind = "apply"
)

// Decision is one submission from a review session.
type Decision struct {
	Kind DecisionKind
	// Selected nil means the default selection; an empty non-nil slice is an
	// explicit empty selection.
	Selected       []int
	Apply          bool
	DryRun         bool
	ExpectedStatus Status
	ReviewerID     string
}

// Outcome is the result of a decision.
type Outcome struct {
	Proposal Proposal     `json:"proposal"`
	Applied  *ApplyResult `json:"applied,omitempty"`
	// Previous is the status the decision was made against.
	Previous Status `json:"-"`
}

// Review coordinates reviewer decisions over the store and the applier.
type Review struct {
	Svc     *Service
	Applier Applier
}

// Decide records a reviewer decision. Accept with apply goes straight to the
// applier so a failed apply leaves the proposal in its pre-call status.
func (r *Review) Decide(ctx context.Context, id string, d Decision) (Outcome, error) {
	p, err := r.Svc.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	expected := d.ExpectedStatus
	if expected == "" {
		expected = p.Status
	}
	out, err := r.decide(ctx, p, d, expected)
	if err != nil {
		return Outcome{}, err
	}
	out.Previous = p.Status
	return out, nil
}

func (r *Review) decide(ctx context.Context, p Proposal, d Decision, expected Status) (Outcome, error) {
	id := p.ID
	switch d.Kind {
	case DecisionReject:
		if d.Apply {
			return Outcome{}, fmt.Errorf("%w: apply cannot be combined with rejected", ErrInvalidInput)
		}
		updated, err := r.Svc.Transition(ctx, TransitionRequest{
			ID: id, To: StatusRejected, Expected: expected, ReviewerID: d.ReviewerID,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Proposal: updated}, nil

	case DecisionAccept:
		if d.Apply {
			return r.apply(ctx, p, d, expected)
		}
		selected := d.Selected
		if selected == nil {
			selected = p.AllIndices()
		}
		updated, err := r.Svc.Transition(ctx, TransitionRequest{
			ID: id, To: StatusAccepted, Expected: expected, ReviewerID: d.ReviewerID, Selected: selected,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Proposal: updated}, nil

	case DecisionApply:
		return r.apply(ctx, p, d, expected)
	}
	return Outcome{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, d.Kind)
}

func (r *Review) apply(ctx context.Context, p Proposal, d Decision, expected Status) (Outcome, error) {
	if r.Applier == nil {
		return Outcome{}, fmt.Errorf("%w: applier not configured", ErrInvalidInput)
	}
	selected := d.Selected
	if selected == nil && p.Status == StatusPending {
		selected = p.AllIndices()
	}
	res, err := r.Applier.Apply(ctx, ApplyRequest{
		ProposalID:     p.ID,
		Selected:       selected,
		DryRun:         d.DryRun,
		ReviewerID:     d.ReviewerID,
		ExpectedStatus: expected,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Proposal: res.Proposal, Applied: &res}, nil
}

// DecisionFromStatus maps a PATCH status onto a decision kind.
func DecisionFromStatus(s Status) (DecisionKind, bool) {
	switch s {
	case StatusAccepted:
		return DecisionAccept, true
	case StatusRejected:
		return DecisionReject, true
	case StatusApplied:
		return DecisionApply, true
	}
	return "", false
}
