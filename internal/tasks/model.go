package tasks

import (
	"encoding/json"
	"time"

	"veriglow-backend/internal/analyses"
)

// Task kinds.
const (
	KindBatch  = "batch"
	KindScrape = "scrape"
)

// Task states. The browser extension polls these, so the names follow the
// conventional background-job lifecycle it already understands.
const (
	StatePending  = "PENDING"
	StateProgress = "PROGRESS"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
)

// Batch submission limits.
const (
	MaxBatchTexts = 100
	MinTextChars  = 5
)

// Retry budgets per kind, counting the first execution.
const (
	batchMaxAttempts  = 3
	scrapeMaxAttempts = 4
)

// Task is a queued analysis job and its lifecycle record.
type Task struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Kind      string          `json:"kind"`
	State     string          `json:"state"`
	Status    string          `json:"status,omitempty"`
	Current   int             `json:"current,omitempty"`
	Total     int             `json:"total,omitempty"`
	Payload   Payload         `json:"-"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MaxAttempts returns the execution budget for the task's kind.
func (t Task) MaxAttempts() int {
	if t.Kind == KindScrape {
		return scrapeMaxAttempts
	}
	return batchMaxAttempts
}

// Payload carries the job input.
type Payload struct {
	Texts           []string `json:"texts,omitempty"`
	URL             string   `json:"url,omitempty"`
	Language        string   `json:"language,omitempty"`
	NotificationURL string   `json:"notification_url,omitempty"`
	IP              string   `json:"ip,omitempty"`
}

// BatchResult summarizes a finished batch run.
type BatchResult struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []BatchItem `json:"results"`
}

// BatchItem is the per-text outcome inside a batch result.
type BatchItem struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Status     string  `json:"status"`
	AnalysisID string  `json:"analysis_id,omitempty"`
	Verdict    string  `json:"verdict,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ScrapeResult is the outcome of a scrape-and-analyze run. It doubles as the
// payload of the completion notification.
type ScrapeResult struct {
	URL      string            `json:"url"`
	Analysis analyses.Analysis `json:"analysis"`
}

// previewLimit caps the echo of submitted text in batch results.
const previewLimit = 100

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
