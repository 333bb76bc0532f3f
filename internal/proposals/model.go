package proposals

import (
	"time"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusApplied  Status = "applied"
)

// ParseStatus validates a wire status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusAccepted, StatusRejected, StatusApplied:
		return s, true
	}
	return "", false
}

// rank orders statuses so every legal move strictly increases it.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAccepted, StatusRejected:
		return 1
	case StatusApplied:
		return 2
	}
	return -1
}

// Terminal reports whether no further move is possible.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusRejected
}

// CanTransition reports whether from -> to is a legal move. The move into
// applied is only legal for the applier, which checks it itself.
func CanTransition(from, to Status) bool {
	if from.Terminal() || from.rank() < 0 || to.rank() < 0 {
		return false
	}
	return to.rank() > from.rank()
}

// Proposal is one analyzer run's batch of recommendations for a profile.
type Proposal struct {
	ID              string             `json:"id"`
	ProfileID       string             `json:"profileId" validate:"required,max=200"`
	Recommendations []Recommendation   `json:"recommendations" validate:"dive"`
	Metrics         map[string]float64 `json:"metrics"`
	GovernanceLinks []string           `json:"governanceLinks" validate:"dive,required"`
	WindowStart     time.Time          `json:"windowStart"`
	WindowEnd       time.Time          `json:"windowEnd"`
	Status          Status             `json:"status"`
	SelectedIndices []int              `json:"selectedIndices,omitempty"`
	DryRun          bool               `json:"dryRun"`
	CreatedBy       string             `json:"createdBy" validate:"required"`
	ReviewedBy      string             `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewedAt,omitempty"`
	AppliedAt       *time.Time         `json:"appliedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// AllIndices returns 0..len(recommendations)-1.
func (p Proposal) AllIndices() []int {
	out := make([]int, len(p.Recommendations))
	for i := range out {
		out[i] = i
	}
	return out
}

// Filter narrows ListByStatus.
type Filter struct {
	Status    Status
	ProfileID string
	Limit     int
	Offset    int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
