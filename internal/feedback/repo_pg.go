package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tuning-backend/internal/shared/storage/db"
	"tuning-backend/internal/shared/timewindow"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// ListWindow returns rows of completed, non-deleted imports inside w.
func (r *PGRepo) ListWindow(ctx context.Context, w timewindow.Window) (Batch, error) {
	const itemsQuery = `
SELECT f.id, f.import_id, f.conversation_id, f.message_index, f.rating, f.category, f.tags, f.comment, f.occurred_at
FROM feedback_items f
JOIN imports i ON i.id = f.import_id
WHERE i.deleted_at IS NULL AND i.status = 'completed'
  AND f.occurred_at >= $1 AND f.occurred_at <= $2
ORDER BY f.occurred_at ASC`
	const refinementsQuery = `
SELECT r.id, r.import_id, r.conversation_id, r.category, r.tags, r.original, r.refined, r.occurred_at
FROM refinements r
JOIN imports i ON i.id = r.import_id
WHERE i.deleted_at IS NULL AND i.status = 'completed'
  AND r.occurred_at >= $1 AND r.occurred_at <= $2
ORDER BY r.occurred_at ASC`

	var out Batch

	rows, err := r.DB.QueryContext(ctx, itemsQuery, w.From, w.To)
	if err != nil {
		return Batch{}, err
	}
	for rows.Next() {
		var it Item
		var tags []byte
		if err := rows.Scan(&it.ID, &it.ImportID, &it.ConversationID, &it.MessageIndex, &it.Rating, &it.Category, &tags, &it.Comment, &it.OccurredAt); err != nil {
			rows.Close()
			return Batch{}, err
		}
		it.Tags = decodeTags(tags)
		out.Items = append(out.Items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Batch{}, err
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, refinementsQuery, w.From, w.To)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ref Refinement
		var tags []byte
		if err := rows.Scan(&ref.ID, &ref.ImportID, &ref.ConversationID, &ref.Category, &tags, &ref.Original, &ref.Refined, &ref.OccurredAt); err != nil {
			return Batch{}, err
		}
		ref.Tags = decodeTags(tags)
		out.Refinements = append(out.Refinements, ref)
	}
	return out, rows.Err()
}

// InsertBatch writes every row of b through q. Callers run it inside the
// transaction that completes the owning import.
func InsertBatch(ctx context.Context, q db.Querier, b Batch) error {
	const itemQuery = `
INSERT INTO feedback_items (id, import_id, conversation_id, message_index, rating, category, tags, comment, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`
	const refinementQuery = `
INSERT INTO refinements (id, import_id, conversation_id, category, tags, original, refined, occurred_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)`

	for _, it := range b.Items {
		tags, err := encodeTags(it.Tags)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, itemQuery,
			it.ID, it.ImportID, it.ConversationID, it.MessageIndex, string(it.Rating), it.Category, tags, it.Comment, it.OccurredAt,
		); err != nil {
			return fmt.Errorf("insert feedback item: %w", err)
		}
	}
	for _, ref := range b.Refinements {
		tags, err := encodeTags(ref.Tags)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, refinementQuery,
			ref.ID, ref.ImportID, ref.ConversationID, ref.Category, tags, ref.Original, ref.Refined, ref.OccurredAt,
		); err != nil {
			return fmt.Errorf("insert refinement: %w", err)
		}
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

var _ Repo = (*PGRepo)(nil)
