package imports

import (
	"context"
	"time"
)

// Repo persists import records. Insert enforces fingerprint uniqueness among
// live records and reports a conflict as *DuplicateError.
type Repo interface {
	Insert(ctx context.Context, r Record) error
	MarkProcessing(ctx context.Context, id string, at time.Time) error
	// Complete writes the import's feedback rows and its completed status together.
	Complete(ctx context.Context, id string, c Completion, at time.Time) (Record, error)
	Fail(ctx context.Context, id, message string, at time.Time) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit, offset int) ([]Record, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
