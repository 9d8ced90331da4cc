// Package webhooks lets users register HTTP callbacks for analysis events
// and handles signing and delivering the payloads.
package webhooks

import "time"

// Events a webhook can subscribe to.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventScrapeCompleted   = "scrape.completed"
	EventTaskFailed        = "task.failed"
)

var knownEvents = map[string]bool{
	EventAnalysisCompleted: true,
	EventScrapeCompleted:   true,
	EventTaskFailed:        true,
}

// KnownEvent reports whether event is subscribable.
func KnownEvent(event string) bool {
	return knownEvents[event]
}

// Webhook is one registered callback. The secret is write-only: it is
// accepted on create and never echoed back.
type Webhook struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delivery is one attempt log row for a webhook.
type Delivery struct {
	ID         string    `json:"id"`
	WebhookID  string    `json:"-"`
	Event      string    `json:"event"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
