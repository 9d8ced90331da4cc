package analyses

import (
	"time"

	"veriglow-backend/internal/factcheck"
	"veriglow-backend/internal/search"
)

// Verdict strings shown to clients. The extension renders these verbatim, so
// they are part of the API.
const (
	VerdictAuthentic    = "AUTHENTIC NEWS"
	VerdictQuestionable = "QUESTIONABLE CONTENT"
)

// UncertainBelow is the confidence percentage under which a verdict counts as
// uncertain in aggregate stats.
const UncertainBelow = 60.0

// MinAnalysisLength is the shortest submission worth classifying, counted in
// runes after any scrape.
const MinAnalysisLength = 20

// Analysis is one stored verdict. Rows are only persisted for authenticated
// callers; guests get the same payload without a history entry.
type Analysis struct {
	ID           string            `json:"id"`
	UserID       string            `json:"-"`
	Query        string            `json:"query"`
	Translated   string            `json:"translated_text,omitempty"`
	SourceURL    string            `json:"source_url,omitempty"`
	Verdict      string            `json:"verdict"`
	Confidence   float64           `json:"confidence"`
	ScoreReal    float64           `json:"score_real"`
	ScoreFake    float64           `json:"score_fake"`
	Explanation  []string          `json:"explanation"`
	RedFlags     []string          `json:"red_flags"`
	FactCheck    *factcheck.Result `json:"fact_check,omitempty"`
	Sources      []search.Source   `json:"sources,omitempty"`
	ModelVersion string            `json:"model_version"`
	Cached       bool              `json:"cached"`
	Reviewed     bool              `json:"reviewed"`
	Correct      *bool             `json:"correct,omitempty"`

	// PredictionID and Variant link a later review back to the tracker row
	// and the A/B arm that produced the verdict. Internal only.
	PredictionID string `json:"-"`
	Variant      string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Uncertain reports whether the verdict is too weak to count as either class.
func (a Analysis) Uncertain() bool { return a.Confidence < UncertainBelow }

// Stats is the public aggregate served by GET /stats.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalAnalyses  int64 `json:"total_analyses"`
	TotalReal      int64 `json:"total_real"`
	TotalFake      int64 `json:"total_fake"`
	TotalUncertain int64 `json:"total_uncertain"`
	TotalReviews   int64 `json:"total_reviews"`
	CorrectVotes   int64 `json:"correct_votes"`
}
