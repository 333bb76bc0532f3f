package proposals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tuning-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const proposalColumns = `id, profile_id, recommendations, metrics, governance_links, window_start, window_end,
       status, selected_indices, dry_run, created_by, reviewed_by, reviewed_at, applied_at, created_at, updated_at`

// Create inserts a new proposal. Recommendations, metrics and links are written
// in the same statement so a proposal is either complete or absent.
func (r *PGRepo) Create(ctx context.Context, p Proposal) error {
	const query = `
INSERT INTO proposals (
	id, profile_id, recommendations, metrics, governance_links, window_start, window_end,
	status, selected_indices, dry_run, created_by, created_at, updated_at
)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, $7, $8, $9::jsonb, $10, $11, $12, $13)`

	recs, err := marshalJSONB(nonNilRecs(p.Recommendations))
	if err != nil {
		return err
	}
	metrics, err := marshalJSONB(nonNilMetrics(p.Metrics))
	if err != nil {
		return err
	}
	links, err := marshalJSONB(nonNilStrings(p.GovernanceLinks))
	if err != nil {
		return err
	}
	selected, err := marshalSelection(p.SelectedIndices)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		p.ID,
		p.ProfileID,
		recs,
		metrics,
		links,
		p.WindowStart,
		p.WindowEnd,
		string(p.Status),
		selected,
		p.DryRun,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

// Get returns a proposal by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	p, err := scanProposal(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	return p, err
}

// List returns proposals matching f, newest first.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Proposal, error) {
	f = f.normalized()

	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ProfileID != "" {
		args = append(args, f.ProfileID)
		where = append(where, fmt.Sprintf("profile_id = $%d", len(args)))
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus swaps the status only if it still equals u.Expected.
func (r *PGRepo) UpdateStatus(ctx context.Context, u StatusUpdate) (Proposal, error) {
	return UpdateStatusWith(ctx, r.DB, u)
}

// LockForUpdate reads a proposal and holds its row lock until q's transaction ends.
func LockForUpdate(ctx context.Context, q db.Querier, id string) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`
	p, err := scanProposal(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	return p, err
}

// UpdateStatusWith performs the status compare-and-swap through q.
func UpdateStatusWith(ctx context.Context, q db.Querier, u StatusUpdate) (Proposal, error) {
	query := `
UPDATE proposals
SET status = $1::text,
    selected_indices = COALESCE($2::jsonb, selected_indices),
    reviewed_by = CASE
        WHEN $1::text = 'applied' AND NULLIF(reviewed_by, '') IS NOT NULL AND reviewed_at IS NOT NULL THEN reviewed_by
        ELSE $3::text
    END,
    reviewed_at = CASE
        WHEN $1::text = 'applied' AND NULLIF(reviewed_by, '') IS NOT NULL AND reviewed_at IS NOT NULL THEN reviewed_at
        ELSE $4::timestamptz
    END,
    applied_at = CASE WHEN $1::text = 'applied' THEN $4::timestamptz ELSE applied_at END,
    updated_at = $4::timestamptz
WHERE id = $5 AND status = $6
RETURNING ` + proposalColumns

	selected, err := marshalSelection(u.Selected)
	if err != nil {
		return Proposal{}, err
	}
	p, err := scanProposal(q.QueryRowContext(ctx, query,
		string(u.To), selected, u.ReviewerID, u.At, u.ID, string(u.Expected),
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, err
	}

	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM proposals WHERE id = $1`, u.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{}, &StateError{ProposalID: u.ID, Current: Status(current), Expected: u.Expected, Requested: u.To, Err: ErrStaleProposal}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (Proposal, error) {
	var p Proposal
	var status string
	var recs, metrics, links, selected []byte
	var reviewedBy sql.NullString
	var reviewedAt, appliedAt sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.ProfileID,
		&recs,
		&metrics,
		&links,
		&p.WindowStart,
		&p.WindowEnd,
		&status,
		&selected,
		&p.DryRun,
		&p.CreatedBy,
		&reviewedBy,
		&reviewedAt,
		&appliedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Proposal{}, err
	}
	p.Status = Status(status)
	if err := unmarshalIfPresent(recs, &p.Recommendations); err != nil {
		return Proposal{}, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := unmarshalIfPresent(metrics, &p.Metrics); err != nil {
		return Proposal{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := unmarshalIfPresent(links, &p.GovernanceLinks); err != nil {
		return Proposal{}, fmt.Errorf("decode governance links: %w", err)
	}
	if err := unmarshalIfPresent(selected, &p.SelectedIndices); err != nil {
		return Proposal{}, fmt.Errorf("decode selected indices: %w", err)
	}
	p.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		p.ReviewedAt = &t
	}
	if appliedAt.Valid {
		t := appliedAt.Time
		p.AppliedAt = &t
	}
	return p, nil
}

func unmarshalIfPresent(raw []byte, into any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

func marshalJSONB(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// marshalSelection keeps a nil selection as SQL NULL.
func marshalSelection(sel []int) (any, error) {
	if sel == nil {
		return nil, nil
	}
	return marshalJSONB(sel)
}

func nonNilRecs(v []Recommendation) []Recommendation {
	if v == nil {
		return []Recommendation{}
	}
	return v
}

func nonNilMetrics(v map[string]float64) map[string]float64 {
	if v == nil {
		return map[string]float64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var _ Repo = (*PGRepo)(nil)
