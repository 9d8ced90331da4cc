package classifier

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryTrackerRepo keeps prediction records in memory for dev and tests.
type MemoryTrackerRepo struct {
	mu      sync.Mutex
	records []PredictionRecord
	now     func() time.Time
}

var _ TrackerRepo = (*MemoryTrackerRepo)(nil)

func NewMemoryTrackerRepo() *MemoryTrackerRepo {
	return &MemoryTrackerRepo{now: time.Now}
}

func (r *MemoryTrackerRepo) Insert(ctx context.Context, rec PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryTrackerRepo) RecordFeedback(ctx context.Context, id string, actual int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			value := actual
			r.records[i].Feedback = &value
			return nil
		}
	}
	return ErrPredictionNotFound
}

func (r *MemoryTrackerRepo) Accuracy(ctx context.Context, modelVersion string) (AccuracyReport, error) {
	if err := ctx.Err(); err != nil {
		return AccuracyReport{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	report := AccuracyReport{ModelVersion: modelVersion}
	for _, rec := range r.records {
		if modelVersion != "" && rec.ModelVersion != modelVersion {
			continue
		}
		correct, reviewed := rec.Correct()
		if !reviewed {
			continue
		}
		report.TotalPredictions++
		if correct {
			report.CorrectPredictions++
		}
	}
	report.IncorrectPredictions = report.TotalPredictions - report.CorrectPredictions
	if report.TotalPredictions > 0 {
		report.Accuracy = float64(report.CorrectPredictions) / float64(report.TotalPredictions) * 100
	}
	return report, nil
}

func (r *MemoryTrackerRepo) ConfidenceDistribution(ctx context.Context, modelVersion string) (ConfidenceReport, error) {
	if err := ctx.Err(); err != nil {
		return ConfidenceReport{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	report := ConfidenceReport{Bins: confidenceBinEdges(), Counts: make([]int64, 10)}
	var confidences []float64
	for _, rec := range r.records {
		if modelVersion != "" && rec.ModelVersion != modelVersion {
			continue
		}
		confidences = append(confidences, rec.Confidence)
		bin := int(rec.Confidence * 10)
		if bin > 9 {
			bin = 9
		}
		if bin < 0 {
			bin = 0
		}
		report.Counts[bin]++
	}
	report.Total = int64(len(confidences))
	if report.Total == 0 {
		return report, nil
	}

	var sum float64
	for _, c := range confidences {
		sum += c
	}
	report.Mean = sum / float64(len(confidences))

	sort.Float64s(confidences)
	mid := len(confidences) / 2
	if len(confidences)%2 == 1 {
		report.Median = confidences[mid]
	} else {
		report.Median = (confidences[mid-1] + confidences[mid]) / 2
	}

	if len(confidences) > 1 {
		var sq float64
		for _, c := range confidences {
			d := c - report.Mean
			sq += d * d
		}
		report.StdDev = math.Sqrt(sq / float64(len(confidences)-1))
	}
	return report, nil
}

func (r *MemoryTrackerRepo) Volume(ctx context.Context, days int) (VolumeReport, error) {
	if err := ctx.Err(); err != nil {
		return VolumeReport{}, err
	}
	if days <= 0 {
		days = 7
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().UTC().AddDate(0, 0, -days)
	type dayAgg struct {
		count int64
		sum   float64
	}
	byDay := make(map[string]*dayAgg)
	for _, rec := range r.records {
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		day := rec.CreatedAt.UTC().Format("2006-01-02")
		agg, ok := byDay[day]
		if !ok {
			agg = &dayAgg{}
			byDay[day] = agg
		}
		agg.count++
		agg.sum += rec.Confidence
	}

	keys := make([]string, 0, len(byDay))
	for day := range byDay {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	var report VolumeReport
	for _, day := range keys {
		agg := byDay[day]
		report.Days = append(report.Days, DayVolume{
			Day:           day,
			Count:         agg.count,
			AvgConfidence: agg.sum / float64(agg.count),
		})
		report.Total += agg.count
	}
	return report, nil
}

func (r *MemoryTrackerRepo) ErrorAnalysis(ctx context.Context, modelVersion string) (ErrorReport, error) {
	if err := ctx.Err(); err != nil {
		return ErrorReport{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	misses := make([]PredictionRecord, 0)
	for _, rec := range r.records {
		if modelVersion != "" && rec.ModelVersion != modelVersion {
			continue
		}
		correct, reviewed := rec.Correct()
		if reviewed && !correct {
			misses = append(misses, rec)
		}
	}
	sort.Slice(misses, func(i, j int) bool {
		return misses[i].CreatedAt.After(misses[j].CreatedAt)
	})
	if len(misses) > 100 {
		misses = misses[:100]
	}

	report := ErrorReport{
		ErrorTypes:        make(map[string]int64),
		ConfidenceBuckets: make(map[string]int64),
	}
	for _, rec := range misses {
		appendError(&report, rec.Prediction, *rec.Feedback, rec.Confidence, rec.CreatedAt)
	}
	return report, nil
}
