package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var settingColumns = []string{"profile_id", "setting_name", "value", "updated_by", "updated_at", "proposal_id", "recommendation_index"}

func TestLockSettingMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM configuration_settings").
		WithArgs("p1", "tone").
		WillReturnRows(sqlmock.NewRows(settingColumns))

	st, ok, err := LockSetting(context.Background(), db, "p1", "tone")
	if err != nil {
		t.Fatalf("LockSetting: %v", err)
	}
	if ok || st.Value != nil || st.ProfileID != "p1" {
		t.Fatalf("expected empty setting, got %+v ok=%v", st, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestLockSettingExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("p1", "tone").
		WillReturnRows(sqlmock.NewRows(settingColumns).AddRow("p1", "tone", "warm", "rev", at, nil, nil))

	st, ok, err := LockSetting(context.Background(), db, "p1", "tone")
	if err != nil {
		t.Fatalf("LockSetting: %v", err)
	}
	if !ok || st.Value == nil || *st.Value != "warm" || st.RecommendationIndex != nil {
		t.Fatalf("unexpected setting %+v", st)
	}
}

func TestUpsertSettingAndInsertAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	idx := 2
	value := "formal"

	mock.ExpectExec("INSERT INTO configuration_settings").
		WithArgs("p1", "tone", value, "rev", at, "prop-1", idx).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO setting_audit").
		WithArgs("a1", "p1", "tone", "prop-1", 2, "set", nil, value, "rev", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := UpsertSetting(context.Background(), db, Setting{
		ProfileID: "p1", Name: "tone", Value: &value, UpdatedBy: "rev", UpdatedAt: at, ProposalID: "prop-1", RecommendationIndex: &idx,
	}); err != nil {
		t.Fatalf("UpsertSetting: %v", err)
	}
	if err := InsertAudit(context.Background(), db, AuditEntry{
		ID: "a1", ProfileID: "p1", Setting: "tone", ProposalID: "prop-1", RecommendationIndex: 2,
		Action: "set", Value: &value, AppliedBy: "rev", AppliedAt: at,
	}); err != nil {
		t.Fatalf("InsertAudit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestCreateSettingConflictIsConcurrentChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	value := "formal"
	st := Setting{ProfileID: "p1", Name: "tone", Value: &value, UpdatedBy: "rev", UpdatedAt: at, ProposalID: "prop-1"}

	mock.ExpectExec(`ON CONFLICT \(profile_id, setting_name\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`ON CONFLICT \(profile_id, setting_name\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := CreateSetting(context.Background(), db, st); err != nil {
		t.Fatalf("first CreateSetting: %v", err)
	}
	if err := CreateSetting(context.Background(), db, st); !errors.Is(err, ErrConcurrentChange) {
		t.Fatalf("expected concurrent change, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
