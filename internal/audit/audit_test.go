package audit_test

import (
	"context"
	"errors"
	"testing"

	"veriglow-backend/internal/audit"
)

type failingRepo struct{}

func (failingRepo) Insert(ctx context.Context, event audit.Event) error {
	return errors.New("database gone")
}

func (failingRepo) ListByUser(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	return nil, nil
}

func (failingRepo) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return nil, nil
}

func TestLogRecordsEvent(t *testing.T) {
	repo := audit.NewMemoryRepo()
	svc := audit.NewService(repo)
	ctx := context.Background()

	svc.LogDataAccess(ctx, "user-1", "history", "analysis-1", "10.0.0.1")
	svc.LogDataModification(ctx, "user-1", "user", "user-1", map[string]any{"plan": "pro"}, "10.0.0.1")
	svc.LogDataDeletion(ctx, "user-2", "account", "user-2", "10.0.0.2")

	events, err := svc.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Action != audit.ActionDataDeletion {
		t.Fatalf("newest event = %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt not stamped")
	}

	mods, err := svc.ListByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("got %d events for user-1, want 2", len(mods))
	}
	changes, ok := mods[0].Details["changes"].(map[string]any)
	if !ok || changes["plan"] != "pro" {
		t.Fatalf("details = %+v", mods[0].Details)
	}
}

func TestLogSwallowsWriteFailures(t *testing.T) {
	svc := audit.NewService(failingRepo{})
	svc.LogDataAccess(context.Background(), "user-1", "history", "analysis-1", "")
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *audit.Service
	svc.LogDataAccess(context.Background(), "user-1", "history", "analysis-1", "")
	if events, err := svc.ListRecent(context.Background(), 5); err != nil || events != nil {
		t.Fatalf("ListRecent = %v, %v", events, err)
	}
}
