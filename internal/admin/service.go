package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/users"
)

// Service backs the admin and moderation endpoints. Users, Analyses and
// Flags are required; the rest are optional collaborators.
type Service struct {
	Users    *users.Service
	Analyses *analyses.Service
	Flags    FlagRepo

	Audit    *audit.Service
	Tracker  *classifier.Tracker
	Failover *classifier.Failover

	now func() time.Time
}

// NewService constructs a Service around the required collaborators.
// Optional ones are set on the returned struct.
func NewService(usersSvc *users.Service, analysesSvc *analyses.Service, flags FlagRepo) *Service {
	return &Service{Users: usersSvc, Analyses: analysesSvc, Flags: flags, now: time.Now}
}

// ListUsers pages through all accounts for the admin console.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]users.User, int64, error) {
	items, err := s.Users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Users.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SetRole changes a user's role and audits who did it.
func (s *Service) SetRole(ctx context.Context, actorID, userID, role, ip string) error {
	if !auth.ValidRole(role) {
		return &ValidationError{Message: fmt.Sprintf("Unknown role: %s", role)}
	}
	if err := s.Users.SetRole(ctx, userID, role); err != nil {
		return err
	}
	s.Audit.LogDataModification(ctx, actorID, "user", userID, map[string]any{"role": role}, ip)
	return nil
}

// SetBanned toggles the ban on an account. Banned users keep their rows but
// stop authenticating.
func (s *Service) SetBanned(ctx context.Context, actorID, userID string, banned bool, ip string) error {
	if err := s.Users.SetBanned(ctx, userID, banned); err != nil {
		return err
	}
	s.Audit.LogDataModification(ctx, actorID, "user", userID, map[string]any{"banned": banned}, ip)
	return nil
}

// Stats assembles the dashboard aggregate. Optional collaborators that are
// not wired contribute zero values rather than errors.
func (s *Service) Stats(ctx context.Context) (PlatformStats, error) {
	st, err := s.Analyses.Stats(ctx)
	if err != nil {
		return PlatformStats{}, err
	}
	out := PlatformStats{Analyses: st, Cache: metrics.SnapshotCache()}
	if s.Tracker != nil && s.Tracker.Repo != nil {
		acc, err := s.Tracker.Repo.Accuracy(ctx, "")
		if err != nil {
			return PlatformStats{}, err
		}
		out.Accuracy = acc
	}
	if s.Failover != nil {
		out.Backends = s.Failover.Status()
	}
	return out, nil
}

// ErrMonitoringDisabled is returned when no prediction tracker is wired.
var ErrMonitoringDisabled = fmt.Errorf("model monitoring is not configured")

// ModelReport composes the tracker's monitoring views. An empty modelVersion
// covers every version; days bounds the volume series (default 7).
func (s *Service) ModelReport(ctx context.Context, modelVersion string, days int) (ModelReport, error) {
	if s.Tracker == nil || s.Tracker.Repo == nil {
		return ModelReport{}, ErrMonitoringDisabled
	}
	if days <= 0 {
		days = 7
	}

	repo := s.Tracker.Repo
	acc, err := repo.Accuracy(ctx, modelVersion)
	if err != nil {
		return ModelReport{}, err
	}
	conf, err := repo.ConfidenceDistribution(ctx, modelVersion)
	if err != nil {
		return ModelReport{}, err
	}
	vol, err := repo.Volume(ctx, days)
	if err != nil {
		return ModelReport{}, err
	}
	errRep, err := repo.ErrorAnalysis(ctx, modelVersion)
	if err != nil {
		return ModelReport{}, err
	}

	return ModelReport{Accuracy: acc, Confidence: conf, Volume: vol, Errors: errRep}, nil
}

// AuditLog returns the newest audit events across all users.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.Audit.ListRecent(ctx, limit)
}

// FlagContent files a moderation flag against a stored analysis.
func (s *Service) FlagContent(ctx context.Context, reporterID, analysisID, reason string) (Flag, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return Flag{}, &ValidationError{Message: "Analysis id is required"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Flag{}, &ValidationError{Message: "Reason is required"}
	}
	if _, err := s.Analyses.GetByID(ctx, analysisID); err != nil {
		return Flag{}, err
	}

	f := Flag{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     FlagOpen,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.Flags.Insert(ctx, f); err != nil {
		return Flag{}, err
	}
	return f, nil
}

// Queue lists flags by status, defaulting to the open ones.
func (s *Service) Queue(ctx context.Context, status string, limit int) ([]Flag, error) {
	if status == "" {
		status = FlagOpen
	}
	if status != FlagOpen && status != FlagResolved {
		return nil, &ValidationError{Message: fmt.Sprintf("Unknown status: %s", status)}
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.Flags.ListByStatus(ctx, status, limit)
}

// Resolve closes a flag with the moderator's action and returns the updated
// row.
func (s *Service) Resolve(ctx context.Context, moderatorID, flagID, action string) (Flag, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return Flag{}, &ValidationError{Message: "Action is required"}
	}
	if err := s.Flags.Resolve(ctx, flagID, moderatorID, action, s.now().UTC()); err != nil {
		return Flag{}, err
	}
	return s.Flags.GetByID(ctx, flagID)
}
