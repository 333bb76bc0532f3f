package imports

import (
	"time"

	"tuning-backend/internal/feedback"
)

// Status is the processing state of an import.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is one submitted conversational export.
type Record struct {
	ID                 string     `json:"id"`
	Filename           string     `json:"filename"`
	Source             string     `json:"source"`
	ContentFingerprint string     `json:"contentFingerprint"`
	Status             Status     `json:"status"`
	Conversations      int        `json:"conversations"`
	Messages           int        `json:"messages"`
	FeedbackItems      int        `json:"feedbackItems"`
	Refinements        int        `json:"refinements"`
	StorageKey         string     `json:"storageKey,omitempty"`
	ErrorMessage       string     `json:"errorMessage,omitempty"`
	CreatedBy          string     `json:"createdBy"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
}

// SubmitRequest is the raw input of Submit.
type SubmitRequest struct {
	Content   []byte
	Filename  string
	Source    string
	CreatedBy string
}

// Completion carries everything written when an import completes.
type Completion struct {
	StorageKey    string
	Conversations int
	Messages      int
	Batch         feedback.Batch
}
