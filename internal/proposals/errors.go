package proposals

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrStaleProposal         = errors.New("stale proposal")
	ErrInvalidProposalState  = errors.New("invalid proposal state")
	ErrEmptySelection        = errors.New("empty selection")
	ErrIndexOutOfRange       = errors.New("index out of range")
	ErrDuplicateIndex        = errors.New("duplicate index")
	ErrInvalidRecommendation = errors.New("invalid recommendation")
	ErrInvalidInput          = errors.New("invalid input")
)

// StateError carries the stored and expected status behind a stale or illegal move.
type StateError struct {
	ProposalID string
	Current    Status
	Expected   Status
	Requested  Status
	Err        error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%v: proposal %s is %s (expected %s, requested %s)", e.Err, e.ProposalID, e.Current, e.Expected, e.Requested)
}

func (e *StateError) Unwrap() error { return e.Err }

// Details is the structured payload surfaced to clients.
func (e *StateError) Details() map[string]any {
	d := map[string]any{"proposalId": e.ProposalID, "currentStatus": e.Current}
	if e.Expected != "" {
		d["expectedStatus"] = e.Expected
	}
	if e.Requested != "" {
		d["requestedStatus"] = e.Requested
	}
	return d
}

// SelectionError points at the offending index of a submitted selection.
type SelectionError struct {
	ProposalID string
	Index      int
	Count      int
	Err        error
}

func (e *SelectionError) Error() string {
	if errors.Is(e.Err, ErrEmptySelection) {
		return fmt.Sprintf("%v: proposal %s", e.Err, e.ProposalID)
	}
	return fmt.Sprintf("%v: index %d with %d recommendations", e.Err, e.Index, e.Count)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Details is the structured payload surfaced to clients.
func (e *SelectionError) Details() map[string]any {
	d := map[string]any{"proposalId": e.ProposalID, "recommendationCount": e.Count}
	if !errors.Is(e.Err, ErrEmptySelection) {
		d["index"] = e.Index
	}
	return d
}
