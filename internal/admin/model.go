// Package admin is the operator surface: user administration, platform
// stats, audit listing, and the content moderation queue.
package admin

import (
	"time"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/shared/metrics"
)

// Flag statuses. New flags open, moderators close them.
const (
	FlagOpen     = "open"
	FlagResolved = "resolved"
)

// Flag is one moderation queue entry: a user reporting a stored analysis.
// ReporterID and ResolvedBy empty out when the account behind them is gone.
type Flag struct {
	ID         string     `json:"id"`
	AnalysisID string     `json:"analysis_id"`
	ReporterID string     `json:"reporter_id,omitempty"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// PlatformStats is the admin dashboard aggregate. Accuracy covers all model
// versions; Backends reflects the failover chain at snapshot time.
type PlatformStats struct {
	Analyses analyses.Stats             `json:"analyses"`
	Accuracy classifier.AccuracyReport  `json:"accuracy"`
	Backends []classifier.BackendStatus `json:"backends"`
	Cache    metrics.CacheStats         `json:"cache"`
}

// ModelReport is the deep monitoring view: how a model version (or all of
// them, when Version filters nothing) behaves in production.
type ModelReport struct {
	Accuracy   classifier.AccuracyReport   `json:"accuracy"`
	Confidence classifier.ConfidenceReport `json:"confidence_distribution"`
	Volume     classifier.VolumeReport     `json:"prediction_volume"`
	Errors     classifier.ErrorReport      `json:"error_analysis"`
}
