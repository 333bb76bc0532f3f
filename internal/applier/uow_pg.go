package applier

import (
	"context"
	"database/sql"

	"tuning-backend/internal/proposals"
	"tuning-backend/internal/settings"
	"tuning-backend/internal/shared/storage/db"
)

// PGUnitOfWork runs an apply inside one Postgres transaction. The proposal row
// and each touched setting row are locked with SELECT ... FOR UPDATE.
type PGUnitOfWork struct {
	DB *sql.DB
}

// Do runs fn inside a transaction that is rolled back if fn fails.
func (u *PGUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, u.DB, func(tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx, absent: map[settingKey]bool{}})
	})
}

type settingKey struct {
	profileID, name string
}

type pgTx struct {
	tx *sql.Tx
	// absent holds settings read as missing; they are inserted, never upserted.
	absent map[settingKey]bool
}

func (t pgTx) LockProposal(ctx context.Context, id string) (proposals.Proposal, error) {
	return proposals.LockForUpdate(ctx, t.tx, id)
}

func (t pgTx) ReadSetting(ctx context.Context, profileID, name string) (settings.Setting, error) {
	st, ok, err := settings.LockSetting(ctx, t.tx, profileID, name)
	if err != nil {
		return settings.Setting{}, err
	}
	if !ok {
		t.absent[settingKey{profileID, name}] = true
	}
	return st, nil
}

func (t pgTx) WriteSetting(ctx context.Context, st settings.Setting) error {
	key := settingKey{st.ProfileID, st.Name}
	if t.absent[key] {
		if err := settings.CreateSetting(ctx, t.tx, st); err != nil {
			return err
		}
		delete(t.absent, key)
		return nil
	}
	return settings.UpsertSetting(ctx, t.tx, st)
}

func (t pgTx) AppendAudit(ctx context.Context, e settings.AuditEntry) error {
	return settings.InsertAudit(ctx, t.tx, e)
}

func (t pgTx) UpdateStatus(ctx context.Context, u proposals.StatusUpdate) (proposals.Proposal, error) {
	return proposals.UpdateStatusWith(ctx, t.tx, u)
}
