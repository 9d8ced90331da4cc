package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateMarshalsEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	hook := Webhook{
		ID:        "w1",
		UserID:    "u1",
		URL:       "https://example.com/hook",
		Secret:    "s3cret",
		Events:    []string{EventAnalysisCompleted, EventTaskFailed},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO webhooks").
		WithArgs(hook.ID, hook.UserID, hook.URL, hook.Secret,
			[]byte(`["analysis.completed","task.failed"]`), true, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), hook); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoListActiveByEventFiltersByContainment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "url", "secret", "events", "active", "created_at", "updated_at",
	}).AddRow("w1", "u1", "https://example.com/hook", "",
		[]byte(`["analysis.completed"]`), true, now, now)

	mock.ExpectQuery("SELECT (.+) FROM webhooks").
		WithArgs("u1", []byte(`["analysis.completed"]`)).
		WillReturnRows(rows)

	hooks, err := repo.ListActiveByEvent(context.Background(), "u1", EventAnalysisCompleted)
	if err != nil {
		t.Fatalf("ListActiveByEvent: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("hooks = %d, want 1", len(hooks))
	}
	if len(hooks[0].Events) != 1 || hooks[0].Events[0] != EventAnalysisCompleted {
		t.Fatalf("events = %v", hooks[0].Events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM webhooks").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoDeleteMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("DELETE FROM webhooks").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoDeliveries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs("d1", "w1", EventTaskFailed, 0, false, "connection refused", int64(42), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.RecordDelivery(context.Background(), Delivery{
		ID:         "d1",
		WebhookID:  "w1",
		Event:      EventTaskFailed,
		Success:    false,
		Error:      "connection refused",
		DurationMs: 42,
		CreatedAt:  now,
	})
	if err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}

	rows := sqlmock.NewRows([]string{
		"id", "webhook_id", "event", "status_code", "success", "error", "duration_ms", "created_at",
	}).
		AddRow("d2", "w1", EventAnalysisCompleted, 200, true, nil, int64(15), now).
		AddRow("d1", "w1", EventTaskFailed, 0, false, "connection refused", int64(42), now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM webhook_deliveries").
		WithArgs("w1", 50).
		WillReturnRows(rows)

	out, err := repo.ListDeliveries(context.Background(), "w1", 50)
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(out))
	}
	if out[0].Error != "" {
		t.Fatalf("null error scanned as %q", out[0].Error)
	}
	if out[1].Error != "connection refused" {
		t.Fatalf("error = %q", out[1].Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
