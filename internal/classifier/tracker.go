package classifier

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"veriglow-backend/internal/shared/util"
)

// ErrPredictionNotFound is returned when feedback targets an unknown
// prediction.
var ErrPredictionNotFound = errors.New("prediction not found")

// PredictionRecord is one classifier decision kept for drift monitoring. Only
// a hash of the input is stored.
type PredictionRecord struct {
	ID           string
	TextHash     string
	TextLength   int
	Prediction   int
	Confidence   float64
	ScoreReal    float64
	ScoreFake    float64
	ModelVersion string
	DurationMS   int64
	Feedback     *int
	CreatedAt    time.Time
}

// Correct reports whether reviewer feedback confirmed the prediction. The
// second return is false while no feedback exists.
func (r PredictionRecord) Correct() (bool, bool) {
	if r.Feedback == nil {
		return false, false
	}
	return *r.Feedback == r.Prediction, true
}

// AccuracyReport aggregates reviewed predictions for one model version, or
// for all versions when ModelVersion is empty.
type AccuracyReport struct {
	ModelVersion         string  `json:"model_version,omitempty"`
	TotalPredictions     int64   `json:"total_predictions"`
	CorrectPredictions   int64   `json:"correct_predictions"`
	IncorrectPredictions int64   `json:"incorrect_predictions"`
	Accuracy             float64 `json:"accuracy"`
}

// ConfidenceReport is a ten-bin histogram of confidence scores.
type ConfidenceReport struct {
	Bins   []float64 `json:"bins"`
	Counts []int64   `json:"counts"`
	Mean   float64   `json:"mean"`
	Median float64   `json:"median"`
	StdDev float64   `json:"std_dev"`
	Total  int64     `json:"total_predictions"`
}

// DayVolume is one day's prediction traffic.
type DayVolume struct {
	Day           string  `json:"day"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// VolumeReport covers the trailing window requested from Volume.
type VolumeReport struct {
	Days  []DayVolume `json:"daily_stats"`
	Total int64       `json:"total_predictions"`
}

// PredictionError describes one reviewed miss.
type PredictionError struct {
	Predicted  string    `json:"predicted"`
	Actual     string    `json:"actual"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"timestamp"`
}

// ErrorReport analyzes reviewed misses: confusion buckets, confidence ranges,
// and the most recent errors.
type ErrorReport struct {
	TotalErrors       int64             `json:"total_errors"`
	ErrorTypes        map[string]int64  `json:"error_types"`
	ConfidenceBuckets map[string]int64  `json:"confidence_distribution"`
	Recent            []PredictionError `json:"recent_errors"`
}

// TrackerRepo stores prediction records and computes the monitoring reports.
type TrackerRepo interface {
	Insert(ctx context.Context, rec PredictionRecord) error
	RecordFeedback(ctx context.Context, id string, actual int) error
	Accuracy(ctx context.Context, modelVersion string) (AccuracyReport, error)
	ConfidenceDistribution(ctx context.Context, modelVersion string) (ConfidenceReport, error)
	Volume(ctx context.Context, days int) (VolumeReport, error)
	ErrorAnalysis(ctx context.Context, modelVersion string) (ErrorReport, error)
}

// Tracker records predictions for monitoring. Analysis flow treats tracker
// errors as non-fatal.
type Tracker struct {
	Repo TrackerRepo
}

// Record stores the prediction and returns its ID.
func (t *Tracker) Record(ctx context.Context, text string, pred Prediction, duration time.Duration) (string, error) {
	if t == nil || t.Repo == nil {
		return "", nil
	}
	rec := PredictionRecord{
		ID:           uuid.NewString(),
		TextHash:     util.HashText(text),
		TextLength:   utf8.RuneCountInString(text),
		Prediction:   pred.Code(),
		Confidence:   pred.Confidence(),
		ScoreReal:    pred.ScoreReal,
		ScoreFake:    pred.ScoreFake,
		ModelVersion: pred.ModelVersion,
		DurationMS:   duration.Milliseconds(),
	}
	if err := t.Repo.Insert(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Feedback stores the reviewer's actual label for a prediction.
func (t *Tracker) Feedback(ctx context.Context, predictionID string, actualLabel string) error {
	if t == nil || t.Repo == nil {
		return nil
	}
	code := CodeFake
	if actualLabel == LabelReal {
		code = CodeReal
	}
	return t.Repo.RecordFeedback(ctx, predictionID, code)
}

// confidenceBinEdges returns the fixed 0.0..1.0 histogram edges.
func confidenceBinEdges() []float64 {
	edges := make([]float64, 11)
	for i := range edges {
		edges[i] = float64(i) / 10
	}
	return edges
}

// confidenceBucketName buckets a confidence for error analysis.
func confidenceBucketName(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "high (>80%)"
	case confidence > 0.5:
		return "medium (50-80%)"
	default:
		return "low (<50%)"
	}
}
