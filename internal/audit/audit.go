// Package audit records compliance events. Writes are best effort: a failed
// audit insert is logged and swallowed, never surfaced to the request.
package audit

import (
	"context"
	"time"

	"veriglow-backend/internal/shared/telemetry"
)

// Actions recorded by the service.
const (
	ActionDataAccess       = "data_access"
	ActionDataModification = "data_modification"
	ActionDataDeletion     = "data_deletion"
	ActionDataExport       = "data_export"
)

// Event is one audit log row.
type Event struct {
	ID           int64          `json:"id"`
	Action       string         `json:"action"`
	UserID       string         `json:"user_id,omitempty"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IP           string         `json:"ip,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Repo persists audit events.
type Repo interface {
	Insert(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Service writes audit events. A nil *Service is a no-op, so callers never
// need to guard their audit calls.
type Service struct {
	Repo Repo
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Log records an arbitrary event.
func (s *Service) Log(ctx context.Context, event Event) {
	if s == nil || s.Repo == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.Repo.Insert(ctx, event); err != nil {
		telemetry.Warn("audit.write_failed", map[string]any{
			"action": event.Action,
			"error":  err.Error(),
		})
		return
	}
	telemetry.Info("audit.event", map[string]any{
		"action":        event.Action,
		"resource_type": event.ResourceType,
		"user_id":       event.UserID,
	})
}

// LogDataAccess records a read of user-owned data.
func (s *Service) LogDataAccess(ctx context.Context, userID, resourceType, resourceID, ip string) {
	s.Log(ctx, Event{
		Action:       ActionDataAccess,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           ip,
	})
}

// LogDataModification records a change, with the changed fields in details.
func (s *Service) LogDataModification(ctx context.Context, userID, resourceType, resourceID string, changes map[string]any, ip string) {
	s.Log(ctx, Event{
		Action:       ActionDataModification,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      map[string]any{"changes": changes},
		IP:           ip,
	})
}

// LogDataDeletion records a delete of user-owned data.
func (s *Service) LogDataDeletion(ctx context.Context, userID, resourceType, resourceID, ip string) {
	s.Log(ctx, Event{
		Action:       ActionDataDeletion,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           ip,
	})
}

// ListRecent returns the newest events across all users.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListRecent(ctx, normalizeLimit(limit))
}

// ListByUser returns the newest events for one user.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListByUser(ctx, userID, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
