package proposals

import (
	"context"
	"errors"
	"fmt"
)

// ApplyRequest asks the applier to write a selected subset of a proposal.
// A nil Selected on an accepted proposal means its persisted selection.
type ApplyRequest struct {
	ProposalID     string
	Selected       []int
	DryRun         bool
	ReviewerID     string
	ExpectedStatus Status
}

// AppliedChange describes one write, performed or previewed.
type AppliedChange struct {
	Index    int     `json:"index"`
	Setting  string  `json:"setting"`
	Action   Action  `json:"action"`
	Previous *string `json:"previous"`
	Value    *string `json:"value"`
}

// ApplyResult is returned by a successful apply or dry run.
type ApplyResult struct {
	Proposal Proposal        `json:"proposal"`
	Selected []int           `json:"selected"`
	Changes  []AppliedChange `json:"changes"`
	DryRun   bool            `json:"dryRun"`
}

// Applier writes proposal changes into the configuration store.
type Applier interface {
	Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error)
}

var (
	ErrSettingDrift = errors.New("setting drift")
	ErrNoopChange   = errors.New("noop change")
)

// ChangeError reports a recommendation that could not be applied to the
// setting's current value.
type ChangeError struct {
	ProposalID string
	Index      int
	Setting    string
	Expected   *string
	Actual     *string
	Err        error
}

func (e *ChangeError) Error() string {
	return fmt.Sprintf("%v: proposal %s recommendation %d (%s)", e.Err, e.ProposalID, e.Index, e.Setting)
}

func (e *ChangeError) Unwrap() error { return e.Err }

// Details is the structured payload surfaced to clients.
func (e *ChangeError) Details() map[string]any {
	return map[string]any{
		"proposalId": e.ProposalID,
		"index":      e.Index,
		"setting":    e.Setting,
		"expected":   e.Expected,
		"actual":     e.Actual,
	}
}
