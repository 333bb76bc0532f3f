package settings

import "time"

// Setting is one configuration value keyed by (ProfileID, Name). A nil Value
// means the setting is cleared.
type Setting struct {
	ProfileID           string    `json:"profileId"`
	Name                string    `json:"name"`
	Value               *string   `json:"value"`
	UpdatedBy           string    `json:"updatedBy,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
	ProposalID          string    `json:"proposalId,omitempty"`
	RecommendationIndex *int      `json:"recommendationIndex,omitempty"`
}

// AuditEntry is an append-only record of one applied recommendation.
type AuditEntry struct {
	ID                  string    `json:"id"`
	ProfileID           string    `json:"profileId"`
	Setting             string    `json:"setting"`
	ProposalID          string    `json:"proposalId"`
	RecommendationIndex int       `json:"recommendationIndex"`
	Action              string    `json:"action"`
	Previous            *string   `json:"previous"`
	Value               *string   `json:"value"`
	AppliedBy           string    `json:"appliedBy"`
	AppliedAt           time.Time `json:"appliedAt"`
}

// SameValue compares two setting values. Absent and empty are the same value.
func SameValue(a, b *string) bool {
	return deref(a) == deref(b)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
