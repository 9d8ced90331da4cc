package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGFlagRepoInsertNullsEmptyReporter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGFlagRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO moderation_queue").
		WithArgs("f1", "a1", "u1", "spam", FlagOpen, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO moderation_queue").
		WithArgs("f2", "a1", nil, "spam", FlagOpen, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	withReporter := Flag{ID: "f1", AnalysisID: "a1", ReporterID: "u1", Reason: "spam", Status: FlagOpen, CreatedAt: now}
	if err := repo.Insert(context.Background(), withReporter); err != nil {
		t.Fatalf("insert with reporter: %v", err)
	}
	anonymous := Flag{ID: "f2", AnalysisID: "a1", Reason: "spam", Status: FlagOpen, CreatedAt: now}
	if err := repo.Insert(context.Background(), anonymous); err != nil {
		t.Fatalf("insert without reporter: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGFlagRepoListByStatusScansNulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGFlagRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "analysis_id", "reporter_id", "reason", "status", "resolved_by", "resolution", "created_at", "resolved_at",
	}).AddRow("f1", "a1", nil, "spam", FlagOpen, nil, nil, now, nil)

	mock.ExpectQuery("SELECT (.+) FROM moderation_queue").
		WithArgs(FlagOpen, 50).
		WillReturnRows(rows)

	flags, err := repo.ListByStatus(context.Background(), FlagOpen, 50)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("flags = %d, want 1", len(flags))
	}
	f := flags[0]
	if f.ReporterID != "" || f.ResolvedBy != "" || f.Resolution != "" || f.ResolvedAt != nil {
		t.Fatalf("null columns not zeroed: %+v", f)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGFlagRepoResolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGFlagRepo{DB: db}
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE moderation_queue").
		WithArgs("f1", FlagResolved, "mod-1", "removed", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE moderation_queue").
		WithArgs("missing", FlagResolved, "mod-1", "removed", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Resolve(context.Background(), "f1", "mod-1", "removed", at); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := repo.Resolve(context.Background(), "missing", "mod-1", "removed", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve missing = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGFlagRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGFlagRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM moderation_queue").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "analysis_id", "reporter_id", "reason", "status", "resolved_by", "resolution", "created_at", "resolved_at",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
