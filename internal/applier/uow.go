// Package applier writes the selected recommendations of a proposal into the
// configuration store as one unit of work.
package applier

import (
	"context"

	"tuning-backend/internal/proposals"
	"tuning-backend/internal/settings"
)

// Tx is the set of reads and writes an apply performs inside one unit of work.
type Tx interface {
	LockProposal(ctx context.Context, id string) (proposals.Proposal, error)
	ReadSetting(ctx context.Context, profileID, name string) (settings.Setting, error)
	WriteSetting(ctx context.Context, st settings.Setting) error
	AppendAudit(ctx context.Context, e settings.AuditEntry) error
	UpdateStatus(ctx context.Context, u proposals.StatusUpdate) (proposals.Proposal, error)
}

// UnitOfWork runs fn atomically: every write fn made is undone when it returns an error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
