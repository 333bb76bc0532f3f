package proposals

import "sort"

// NormalizeSelection validates indices against a proposal of count
// recommendations and returns them ascending. nil and empty are both rejected.
func NormalizeSelection(proposalID string, indices []int, count int) ([]int, error) {
	if len(indices) == 0 {
		return nil, &SelectionError{ProposalID: proposalID, Count: count, Err: ErrEmptySelection}
	}
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= count {
			return nil, &SelectionError{ProposalID: proposalID, Index: idx, Count: count, Err: ErrIndexOutOfRange}
		}
		if _, dup := seen[idx]; dup {
			return nil, &SelectionError{ProposalID: proposalID, Index: idx, Count: count, Err: ErrDuplicateIndex}
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}
