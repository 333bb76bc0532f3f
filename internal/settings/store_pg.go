package settings

import (
	"context"
	"database/sql"
	"errors"

	"tuning-backend/internal/shared/storage/db"
)

// PGStore implements Reader using Postgres.
type PGStore struct {
	DB *sql.DB
}

// ListByProfile returns the profile's settings ordered by name.
func (s *PGStore) ListByProfile(ctx context.Context, profileID string) ([]Setting, error) {
	const query = `
SELECT profile_id, setting_name, value, updated_by, updated_at, proposal_id, recommendation_index
FROM configuration_settings
WHERE profile_id = $1
ORDER BY setting_name ASC`

	rows, err := s.DB.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Setting{}
	for rows.Next() {
		st, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListAudit returns the audit entries of a proposal in write order.
func (s *PGStore) ListAudit(ctx context.Context, proposalID string) ([]AuditEntry, error) {
	const query = `
SELECT id, profile_id, setting_name, proposal_id, recommendation_index, action, previous_value, new_value, applied_by, applied_at
FROM setting_audit
WHERE proposal_id = $1
ORDER BY recommendation_index ASC, applied_at ASC`

	rows, err := s.DB.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var prev, val sql.NullString
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Setting, &e.ProposalID, &e.RecommendationIndex, &e.Action, &prev, &val, &e.AppliedBy, &e.AppliedAt); err != nil {
			return nil, err
		}
		e.Previous = nullableString(prev)
		e.Value = nullableString(val)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LockSetting reads a setting with a row lock held until q's transaction ends.
// A missing row is reported as ok=false.
func LockSetting(ctx context.Context, q db.Querier, profileID, name string) (Setting, bool, error) {
	const query = `
SELECT profile_id, setting_name, value, updated_by, updated_at, proposal_id, recommendation_index
FROM configuration_settings
WHERE profile_id = $1 AND setting_name = $2
FOR UPDATE`

	st, err := scanSetting(q.QueryRowContext(ctx, query, profileID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Setting{ProfileID: profileID, Name: name}, false, nil
	}
	if err != nil {
		return Setting{}, false, err
	}
	return st, true, nil
}

// UpsertSetting writes a setting whose row is locked by LockSetting.
func UpsertSetting(ctx context.Context, q db.Querier, st Setting) error {
	const query = `
INSERT INTO configuration_settings (profile_id, setting_name, value, updated_by, updated_at, proposal_id, recommendation_index)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (profile_id, setting_name) DO UPDATE
SET value = EXCLUDED.value,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at,
    proposal_id = EXCLUDED.proposal_id,
    recommendation_index = EXCLUDED.recommendation_index`

	_, err := q.ExecContext(ctx, query,
		st.ProfileID, st.Name, st.Value, st.UpdatedBy, st.UpdatedAt, nullIfEmpty(st.ProposalID), st.RecommendationIndex,
	)
	return err
}

// CreateSetting inserts a setting that LockSetting reported missing. A missing
// row takes no lock, so a row created in the meantime by another transaction
// fails with ErrConcurrentChange instead of being overwritten.
func CreateSetting(ctx context.Context, q db.Querier, st Setting) error {
	const query = `
INSERT INTO configuration_settings (profile_id, setting_name, value, updated_by, updated_at, proposal_id, recommendation_index)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (profile_id, setting_name) DO NOTHING`

	res, err := q.ExecContext(ctx, query,
		st.ProfileID, st.Name, st.Value, st.UpdatedBy, st.UpdatedAt, nullIfEmpty(st.ProposalID), st.RecommendationIndex,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentChange
	}
	return nil
}

// InsertAudit appends an audit row.
func InsertAudit(ctx context.Context, q db.Querier, e AuditEntry) error {
	const query = `
INSERT INTO setting_audit (id, profile_id, setting_name, proposal_id, recommendation_index, action, previous_value, new_value, applied_by, applied_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := q.ExecContext(ctx, query,
		e.ID, e.ProfileID, e.Setting, e.ProposalID, e.RecommendationIndex, e.Action, e.Previous, e.Value, e.AppliedBy, e.AppliedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSetting(row rowScanner) (Setting, error) {
	var st Setting
	var value, updatedBy, proposalID sql.NullString
	var index sql.NullInt64
	if err := row.Scan(&st.ProfileID, &st.Name, &value, &updatedBy, &st.UpdatedAt, &proposalID, &index); err != nil {
		return Setting{}, err
	}
	st.Value = nullableString(value)
	st.UpdatedBy = updatedBy.String
	st.ProposalID = proposalID.String
	if index.Valid {
		i := int(index.Int64)
		st.RecommendationIndex = &i
	}
	return st, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Reader = (*PGStore)(nil)
