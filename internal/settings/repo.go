package settings

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConcurrentChange reports that a setting read as absent was created by
	// another writer before this transaction could insert it.
	ErrConcurrentChange = errors.New("setting changed concurrently")
)

// Reader is the read side of the configuration store. Writes go through the applier.
type Reader interface {
	ListByProfile(ctx context.Context, profileID string) ([]Setting, error)
	ListAudit(ctx context.Context, proposalID string) ([]AuditEntry, error)
}
