package classifier

import (
	"crypto/md5"
	"sync"
)

// Variant names are fixed; a test always compares exactly two arms.
const (
	VariantA = "a"
	VariantB = "b"
)

// Router splits classification traffic between two backends for an A/B test.
// Assignment is deterministic per user so repeat requests stay on the same
// arm.
type Router struct {
	TestID string
	Split  float64
	A      Backend
	B      Backend

	mu    sync.Mutex
	stats map[string]*variantStats
}

type variantStats struct {
	count   int64
	correct int64
}

func NewRouter(testID string, split float64, a, b Backend) *Router {
	return &Router{
		TestID: testID,
		Split:  split,
		A:      a,
		B:      b,
		stats: map[string]*variantStats{
			VariantA: {},
			VariantB: {},
		},
	}
}

// Assign returns the stable variant for a user.
func (r *Router) Assign(userID string) string {
	if float64(variantBucket(r.TestID, userID)) < r.Split*100 {
		return VariantA
	}
	return VariantB
}

// Pick returns the classifier serving the user's variant.
func (r *Router) Pick(userID string) (Classifier, string) {
	variant := r.Assign(userID)
	if variant == VariantA {
		return r.A.Classifier, variant
	}
	return r.B.Classifier, variant
}

// RecordResult counts a reviewed prediction against its variant.
func (r *Router) RecordResult(variant string, correct bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[variant]
	if !ok {
		return
	}
	stats.count++
	if correct {
		stats.correct++
	}
}

// VariantResult summarizes one arm of the test.
type VariantResult struct {
	Version  string  `json:"version"`
	Accuracy float64 `json:"accuracy"`
	Count    int64   `json:"count"`
}

// Results reports per-variant accuracy, the current winner, and the accuracy
// gap between the arms.
type Results struct {
	Name       string        `json:"name"`
	VariantA   VariantResult `json:"version_a"`
	VariantB   VariantResult `json:"version_b"`
	Winner     string        `json:"winner"`
	Confidence float64       `json:"confidence"`
}

func (r *Router) Results() Results {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := summarize(r.A.Name, r.stats[VariantA])
	b := summarize(r.B.Name, r.stats[VariantB])

	winner := b.Version
	if a.Accuracy > b.Accuracy {
		winner = a.Version
	}
	diff := a.Accuracy - b.Accuracy
	if diff < 0 {
		diff = -diff
	}

	return Results{
		Name:       r.TestID,
		VariantA:   a,
		VariantB:   b,
		Winner:     winner,
		Confidence: diff,
	}
}

func summarize(version string, stats *variantStats) VariantResult {
	out := VariantResult{Version: version}
	if stats == nil || stats.count == 0 {
		return out
	}
	out.Count = stats.count
	out.Accuracy = float64(stats.correct) / float64(stats.count) * 100
	return out
}

// variantBucket maps the md5 of testID+userID onto 0..99, matching the
// assignment rule used when the test population was first bucketed.
func variantBucket(testID, userID string) int {
	sum := md5.Sum([]byte(testID + userID))
	val := 0
	for _, b := range sum {
		val = (val*256 + int(b)) % 100
	}
	return val
}
