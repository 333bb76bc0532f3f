package imports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tuning-backend/internal/feedback"
	"tuning-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. Fingerprint uniqueness comes from the
// partial unique index on live rows.
type PGRepo struct {
	DB *sql.DB
}

const importColumns = `id, filename, source, content_fingerprint, status, conversations, messages, feedback_items,
       refinements, storage_key, error_message, created_by, created_at, updated_at, deleted_at`

func (r *PGRepo) Insert(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO imports (id, filename, source, content_fingerprint, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.Source, rec.ContentFingerprint, string(rec.Status), rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err) {
		return err
	}

	existing, lookupErr := scanRecord(r.DB.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imports WHERE content_fingerprint = $1 AND deleted_at IS NULL`,
		rec.ContentFingerprint,
	))
	if lookupErr != nil {
		return fmt.Errorf("lookup duplicate: %w", lookupErr)
	}
	return &DuplicateError{Existing: existing}
}

func (r *PGRepo) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	const query = `
UPDATE imports SET status = 'processing', updated_at = $2
WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL`

	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, r.DB, res, id)
}

func (r *PGRepo) Complete(ctx context.Context, id string, c Completion, at time.Time) (Record, error) {
	const query = `
UPDATE imports
SET status = 'completed', storage_key = $2, conversations = $3, messages = $4,
    feedback_items = $5, refinements = $6, updated_at = $7
WHERE id = $1 AND status = 'processing' AND deleted_at IS NULL
RETURNING ` + importColumns

	var out Record
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := feedback.InsertBatch(ctx, tx, c.Batch); err != nil {
			return err
		}
		rec, err := scanRecord(tx.QueryRowContext(ctx, query,
			id, nullIfEmpty(c.StorageKey), c.Conversations, c.Messages, len(c.Batch.Items), len(c.Batch.Refinements), at,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrInvalid(ctx, tx, id)
		}
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (r *PGRepo) Fail(ctx context.Context, id, message string, at time.Time) (Record, error) {
	const query = `
UPDATE imports SET status = 'failed', error_message = $2, updated_at = $3
WHERE id = $1 AND status IN ('pending', 'processing') AND deleted_at IS NULL
RETURNING ` + importColumns

	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id, message, at))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, r.missingOrInvalid(ctx, r.DB, id)
	}
	return rec, err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(r.DB.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imports WHERE id = $1 AND deleted_at IS NULL`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+importColumns+` FROM imports WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PGRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE imports SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) checkAffected(ctx context.Context, q db.Querier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missingOrInvalid(ctx, q, id)
	}
	return nil
}

func (r *PGRepo) missingOrInvalid(ctx context.Context, q db.Querier, id string) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM imports WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: import %s is %s", ErrInvalidState, id, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	var storageKey, errorMessage sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.Source,
		&rec.ContentFingerprint,
		&status,
		&rec.Conversations,
		&rec.Messages,
		&rec.FeedbackItems,
		&rec.Refinements,
		&storageKey,
		&errorMessage,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&deletedAt,
	); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.StorageKey = storageKey.String
	rec.ErrorMessage = errorMessage.String
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.DeletedAt = &t
	}
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
