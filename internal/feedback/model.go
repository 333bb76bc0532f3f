package feedback

import "time"

// Rating is the reviewer signal attached to a single assistant message.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// ParseRating maps free-form export values onto a Rating. Unknown values are neutral.
func ParseRating(raw string) Rating {
	switch raw {
	case "positive", "up", "thumbs_up", "good", "+1":
		return RatingPositive
	case "negative", "down", "thumbs_down", "bad", "-1":
		return RatingNegative
	default:
		return RatingNeutral
	}
}

// Item is one rated message extracted from an import.
type Item struct {
	ID             string    `json:"id"`
	ImportID       string    `json:"importId"`
	ConversationID string    `json:"conversationId"`
	MessageIndex   int       `json:"messageIndex"`
	Rating         Rating    `json:"rating"`
	Category       string    `json:"category,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Refinement records a user rewriting an assistant answer.
type Refinement struct {
	ID             string    `json:"id"`
	ImportID       string    `json:"importId"`
	ConversationID string    `json:"conversationId"`
	Category       string    `json:"category,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Original       string    `json:"original"`
	Refined        string    `json:"refined"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Batch groups the rows of one import, or the rows inside one window.
type Batch struct {
	Items       []Item       `json:"feedback"`
	Refinements []Refinement `json:"refinements"`
}

// Empty reports whether the batch carries no rows at all.
func (b Batch) Empty() bool {
	return len(b.Items) == 0 && len(b.Refinements) == 0
}
