package classifier

import (
	"context"
	"database/sql"
	"time"
)

// PGTrackerRepo stores prediction records in Postgres.
type PGTrackerRepo struct {
	DB *sql.DB
}

var _ TrackerRepo = (*PGTrackerRepo)(nil)

func (r *PGTrackerRepo) Insert(ctx context.Context, rec PredictionRecord) error {
	const query = `
INSERT INTO predictions (id, text_hash, text_length, prediction, confidence, score_real, score_fake, model_version, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.TextHash,
		rec.TextLength,
		rec.Prediction,
		rec.Confidence,
		rec.ScoreReal,
		rec.ScoreFake,
		rec.ModelVersion,
		rec.DurationMS,
	)
	return err
}

func (r *PGTrackerRepo) RecordFeedback(ctx context.Context, id string, actual int) error {
	const query = `UPDATE predictions SET feedback = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, actual)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPredictionNotFound
	}
	return nil
}

func (r *PGTrackerRepo) Accuracy(ctx context.Context, modelVersion string) (AccuracyReport, error) {
	const query = `
SELECT
  count(*) FILTER (WHERE feedback IS NOT NULL),
  count(*) FILTER (WHERE feedback IS NOT NULL AND feedback = prediction)
FROM predictions
WHERE ($1 = '' OR model_version = $1)`

	report := AccuracyReport{ModelVersion: modelVersion}
	if err := r.DB.QueryRowContext(ctx, query, modelVersion).Scan(&report.TotalPredictions, &report.CorrectPredictions); err != nil {
		return AccuracyReport{}, err
	}
	report.IncorrectPredictions = report.TotalPredictions - report.CorrectPredictions
	if report.TotalPredictions > 0 {
		report.Accuracy = float64(report.CorrectPredictions) / float64(report.TotalPredictions) * 100
	}
	return report, nil
}

func (r *PGTrackerRepo) ConfidenceDistribution(ctx context.Context, modelVersion string) (ConfidenceReport, error) {
	report := ConfidenceReport{Bins: confidenceBinEdges(), Counts: make([]int64, 10)}

	const statsQuery = `
SELECT count(*),
       COALESCE(avg(confidence), 0),
       COALESCE(percentile_cont(0.5) WITHIN GROUP (ORDER BY confidence), 0),
       COALESCE(stddev_samp(confidence), 0)
FROM predictions
WHERE ($1 = '' OR model_version = $1)`
	if err := r.DB.QueryRowContext(ctx, statsQuery, modelVersion).Scan(&report.Total, &report.Mean, &report.Median, &report.StdDev); err != nil {
		return ConfidenceReport{}, err
	}
	if report.Total == 0 {
		return report, nil
	}

	// width_bucket maps 1.0 into an 11th bucket; fold it into the top bin.
	const binsQuery = `
SELECT least(width_bucket(confidence, 0, 1, 10), 10), count(*)
FROM predictions
WHERE ($1 = '' OR model_version = $1)
GROUP BY 1`
	rows, err := r.DB.QueryContext(ctx, binsQuery, modelVersion)
	if err != nil {
		return ConfidenceReport{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var bin int
		var count int64
		if err := rows.Scan(&bin, &count); err != nil {
			return ConfidenceReport{}, err
		}
		if bin >= 1 && bin <= 10 {
			report.Counts[bin-1] = count
		}
	}
	return report, rows.Err()
}

func (r *PGTrackerRepo) Volume(ctx context.Context, days int) (VolumeReport, error) {
	if days <= 0 {
		days = 7
	}
	const query = `
SELECT to_char(created_at, 'YYYY-MM-DD'), count(*), avg(confidence)
FROM predictions
WHERE created_at >= now() - make_interval(days => $1)
GROUP BY 1
ORDER BY 1`
	rows, err := r.DB.QueryContext(ctx, query, days)
	if err != nil {
		return VolumeReport{}, err
	}
	defer rows.Close()

	var report VolumeReport
	for rows.Next() {
		var day DayVolume
		if err := rows.Scan(&day.Day, &day.Count, &day.AvgConfidence); err != nil {
			return VolumeReport{}, err
		}
		report.Days = append(report.Days, day)
		report.Total += day.Count
	}
	return report, rows.Err()
}

func (r *PGTrackerRepo) ErrorAnalysis(ctx context.Context, modelVersion string) (ErrorReport, error) {
	const query = `
SELECT prediction, feedback, confidence, created_at
FROM predictions
WHERE feedback IS NOT NULL AND feedback <> prediction AND ($1 = '' OR model_version = $1)
ORDER BY created_at DESC
LIMIT 100`
	rows, err := r.DB.QueryContext(ctx, query, modelVersion)
	if err != nil {
		return ErrorReport{}, err
	}
	defer rows.Close()

	report := ErrorReport{
		ErrorTypes:        make(map[string]int64),
		ConfidenceBuckets: make(map[string]int64),
	}
	for rows.Next() {
		var predicted, actual int
		var confidence float64
		var createdAt time.Time
		if err := rows.Scan(&predicted, &actual, &confidence, &createdAt); err != nil {
			return ErrorReport{}, err
		}
		appendError(&report, predicted, actual, confidence, createdAt)
	}
	return report, rows.Err()
}

// appendError folds one reviewed miss into the report, keeping the 20 most
// recent entries.
func appendError(report *ErrorReport, predicted, actual int, confidence float64, createdAt time.Time) {
	report.TotalErrors++
	report.ErrorTypes[LabelFromCode(predicted)+" -> "+LabelFromCode(actual)]++
	report.ConfidenceBuckets[confidenceBucketName(confidence)]++
	if len(report.Recent) < 20 {
		report.Recent = append(report.Recent, PredictionError{
			Predicted:  LabelFromCode(predicted),
			Actual:     LabelFromCode(actual),
			Confidence: confidence,
			CreatedAt:  createdAt,
		})
	}
}
