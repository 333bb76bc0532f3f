package imports

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tuning-backend/internal/feedback"
)

var recordColumns = []string{
	"id", "filename", "source", "content_fingerprint", "status", "conversations", "messages", "feedback_items",
	"refinements", "storage_key", "error_message", "created_by", "created_at", "updated_at", "deleted_at",
}

func recordRow(id, status string) []driver.Value {
	return []driver.Value{id, "a.txt", "chat", "fp", status, 1, 2, 1, 0, "imports/" + id + "/a.txt", nil, "u1", importedAt, importedAt, nil}
}

func newPGRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoInsertDuplicate(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectExec("INSERT INTO imports").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("WHERE content_fingerprint = \\$1 AND deleted_at IS NULL").
		WithArgs("fp").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(recordRow("existing", "completed")...))

	err := repo.Insert(context.Background(), Record{ID: "new", ContentFingerprint: "fp", Status: StatusPending})
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Existing.ID != "existing" || dup.Existing.Status != StatusCompleted {
		t.Fatalf("expected duplicate referencing existing, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertOtherError(t *testing.T) {
	repo, mock := newPGRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO imports").WillReturnError(boom)

	if err := repo.Insert(context.Background(), Record{ID: "new"}); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
}

func TestPGRepoCompleteWritesRowsInTx(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO feedback_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refinements").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE imports").
		WithArgs("i1", "imports/i1/a.txt", 1, 2, 1, 1, importedAt).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(recordRow("i1", "completed")...))
	mock.ExpectCommit()

	rec, err := repo.Complete(context.Background(), "i1", Completion{
		StorageKey:    "imports/i1/a.txt",
		Conversations: 1,
		Messages:      2,
		Batch: feedback.Batch{
			Items:       []feedback.Item{{ID: "f1", ImportID: "i1", Rating: feedback.RatingPositive, OccurredAt: importedAt}},
			Refinements: []feedback.Refinement{{ID: "r1", ImportID: "i1", Refined: "x", OccurredAt: importedAt}},
		},
	}, importedAt)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %s", rec.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteRollsBackOnInvalidState(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE imports").WillReturnRows(sqlmock.NewRows(recordColumns))
	mock.ExpectQuery("SELECT status FROM imports").
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))
	mock.ExpectRollback()

	_, err := repo.Complete(context.Background(), "i1", Completion{}, importedAt)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSoftDeleteMissing(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectExec("UPDATE imports SET deleted_at").
		WithArgs("i1", importedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SoftDelete(context.Background(), "i1", importedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPGRepoListAndGet(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(recordRow("i2", "completed")...).AddRow(recordRow("i1", "failed")...))
	out, err := repo.List(context.Background(), 20, 0)
	if err != nil || len(out) != 2 || out[1].Status != StatusFailed {
		t.Fatalf("List: %+v, %v", out, err)
	}

	mock.ExpectQuery("WHERE id = \\$1 AND deleted_at IS NULL").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(recordColumns))
	if _, err := repo.Get(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
