package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/queue"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/telemetry"
)

// Notifier posts a one-off completion callback to a caller-supplied URL.
type Notifier interface {
	Notify(ctx context.Context, url, event string, data any) error
}

// EventSink fans task lifecycle events out to the owner's registered
// webhooks. Implementations must not block.
type EventSink interface {
	Dispatch(ctx context.Context, userID, event string, data any)
}

// inlineRetryPause spaces out retries when jobs run in-process. Queue-backed
// deployments get their pacing from redelivery instead.
const inlineRetryPause = 2 * time.Second

// Service validates submissions, enqueues jobs, and executes them. With no
// queue configured, jobs run in a goroutine inside the API process.
type Service struct {
	Repo     Repo
	Queue    queue.Client
	Analyses *analyses.Service
	Notifier Notifier
	Events   EventSink

	now func() time.Time
}

func NewService(repo Repo, analysesSvc *analyses.Service) *Service {
	return &Service{Repo: repo, Analyses: analysesSvc, now: time.Now}
}

// SubmitBatch validates and queues a batch job.
func (s *Service) SubmitBatch(ctx context.Context, userID string, texts []string, language, ip string) (Task, error) {
	if len(texts) == 0 {
		return Task{}, &ValidationError{Message: "No texts provided"}
	}
	if len(texts) > MaxBatchTexts {
		return Task{}, &ValidationError{Message: fmt.Sprintf("Maximum %d texts per batch", MaxBatchTexts)}
	}
	for i, text := range texts {
		if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextChars {
			return Task{}, &ValidationError{
				Message: fmt.Sprintf("Text %d is too short (minimum %d characters)", i+1, MinTextChars),
			}
		}
	}

	return s.submit(ctx, Task{
		UserID:  userID,
		Kind:    KindBatch,
		Total:   len(texts),
		Payload: Payload{Texts: texts, Language: language, IP: ip},
	})
}

// SubmitScrape validates and queues a scrape-and-analyze job.
func (s *Service) SubmitScrape(ctx context.Context, userID, rawURL, notificationURL, ip string) (Task, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return Task{}, &ValidationError{Message: "Invalid URL"}
	}

	return s.submit(ctx, Task{
		UserID:  userID,
		Kind:    KindScrape,
		Payload: Payload{URL: rawURL, NotificationURL: notificationURL, IP: ip},
	})
}

// Get returns a task visible to the caller. Tasks belonging to other users
// look like they don't exist unless the caller is an admin.
func (s *Service) Get(ctx context.Context, taskID, userID string, admin bool) (Task, error) {
	t, err := s.Repo.GetByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if !admin && t.UserID != userID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) submit(ctx context.Context, t Task) (Task, error) {
	now := s.now().UTC()
	t.ID = uuid.NewString()
	t.State = StatePending
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := s.Repo.Create(ctx, t); err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	if err := s.dispatch(ctx, t.ID, 0); err != nil {
		if markErr := s.Repo.MarkFailure(ctx, t.ID, "failed to enqueue"); markErr != nil {
			telemetry.Error("tasks.mark_failed", map[string]any{"task_id": t.ID, "error": markErr.Error()})
		}
		return Task{}, fmt.Errorf("enqueue task: %w", err)
	}

	telemetry.Info("tasks.submitted", map[string]any{"task_id": t.ID, "kind": t.Kind, "user_id": t.UserID})
	return t, nil
}

// dispatch hands the task to the queue, or to a goroutine when no queue is
// configured. The pause applies only to the inline path.
func (s *Service) dispatch(ctx context.Context, taskID string, pause time.Duration) error {
	msg := queue.Message{
		TaskID:     taskID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: s.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if s.Queue != nil {
		return s.Queue.Send(ctx, msg)
	}

	go func() {
		if pause > 0 {
			time.Sleep(pause)
		}
		if err := s.Run(context.Background(), msg.TaskID, msg.RequestID); err != nil {
			telemetry.Error("tasks.inline_run_failed", map[string]any{"task_id": msg.TaskID, "error": err.Error()})
		}
	}()
	return nil
}

// Run executes one attempt and settles the outcome: success, a retry while
// the attempt budget lasts, or failure. A nil return means the queue message
// is spent and can be deleted.
func (s *Service) Run(ctx context.Context, taskID, requestID string) error {
	t, err := s.Repo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t.State == StateSuccess || t.State == StateFailure {
		// Duplicate delivery of a settled task.
		return nil
	}

	attempt, err := s.Repo.IncAttempts(ctx, taskID)
	if err != nil {
		return err
	}

	fields := map[string]any{"task_id": t.ID, "kind": t.Kind, "attempt": attempt}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	telemetry.Info("worker.task.started", fields)

	var result any
	var runErr error
	switch t.Kind {
	case KindBatch:
		result, runErr = s.runBatch(ctx, t)
	case KindScrape:
		result, runErr = s.runScrape(ctx, t)
	default:
		// Nothing to retry for a kind this build doesn't know.
		if err := s.Repo.MarkFailure(ctx, t.ID, fmt.Sprintf("unknown task kind %q", t.Kind)); err != nil {
			return err
		}
		metrics.IncTaskJobsFailed()
		return nil
	}
	if runErr != nil {
		return s.settleFailure(ctx, t, attempt, runErr)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return s.settleFailure(ctx, t, attempt, err)
	}
	if err := s.Repo.MarkSuccess(ctx, t.ID, payload); err != nil {
		return err
	}
	metrics.IncTaskJobsCompleted()
	telemetry.Info("worker.task.completed", fields)
	return nil
}

func (s *Service) settleFailure(ctx context.Context, t Task, attempt int, runErr error) error {
	fields := map[string]any{
		"task_id": t.ID,
		"kind":    t.Kind,
		"attempt": attempt,
		"error":   runErr.Error(),
	}

	if attempt < t.MaxAttempts() {
		status := fmt.Sprintf("Retrying after failure (attempt %d of %d)", attempt, t.MaxAttempts())
		if err := s.Repo.MarkPending(ctx, t.ID, status); err != nil {
			return err
		}
		telemetry.Warn("worker.task.retry", fields)
		return s.dispatch(ctx, t.ID, inlineRetryPause)
	}

	if err := s.Repo.MarkFailure(ctx, t.ID, runErr.Error()); err != nil {
		return err
	}
	metrics.IncTaskJobsFailed()
	telemetry.Error("worker.task.failed", fields)
	if s.Events != nil && t.UserID != "" {
		s.Events.Dispatch(ctx, t.UserID, "task.failed", map[string]any{
			"task_id": t.ID,
			"kind":    t.Kind,
			"error":   runErr.Error(),
		})
	}
	return nil
}

func (s *Service) runBatch(ctx context.Context, t Task) (BatchResult, error) {
	texts := t.Payload.Texts
	out := BatchResult{Total: len(texts), Results: make([]BatchItem, 0, len(texts))}

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-batch; leave the rest for the retry.
			return out, err
		}

		status := fmt.Sprintf("Analyzing text %d/%d", i+1, len(texts))
		if err := s.Repo.MarkProgress(ctx, t.ID, i+1, len(texts), status); err != nil {
			telemetry.Warn("worker.task.progress_failed", map[string]any{"task_id": t.ID, "error": err.Error()})
		}

		item := BatchItem{Index: i, Text: preview(text)}
		a, err := s.Analyses.Analyze(ctx, analyses.AnalyzeRequest{
			Text:     text,
			Language: t.Payload.Language,
			UserID:   t.UserID,
			Guest:    t.UserID == "",
			IP:       t.Payload.IP,
		})
		if err != nil {
			item.Status = "error"
			item.Error = err.Error()
			out.Failed++
		} else {
			item.Status = "success"
			item.AnalysisID = a.ID
			item.Verdict = a.Verdict
			item.Confidence = a.Confidence
			out.Successful++
		}
		out.Results = append(out.Results, item)
	}
	return out, nil
}

func (s *Service) runScrape(ctx context.Context, t Task) (ScrapeResult, error) {
	if err := s.Repo.MarkProgress(ctx, t.ID, 0, 0, "Scraping and analyzing URL"); err != nil {
		telemetry.Warn("worker.task.progress_failed", map[string]any{"task_id": t.ID, "error": err.Error()})
	}

	a, err := s.Analyses.Analyze(ctx, analyses.AnalyzeRequest{
		Text:   t.Payload.URL,
		UserID: t.UserID,
		Guest:  t.UserID == "",
		IP:     t.Payload.IP,
	})
	if err != nil {
		return ScrapeResult{}, err
	}

	result := ScrapeResult{URL: t.Payload.URL, Analysis: a}
	if t.Payload.NotificationURL != "" && s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, t.Payload.NotificationURL, "scrape.completed", result); err != nil {
			telemetry.Warn("worker.task.notify_failed", map[string]any{"task_id": t.ID, "error": err.Error()})
		}
	}
	if s.Events != nil && t.UserID != "" {
		s.Events.Dispatch(ctx, t.UserID, "scrape.completed", result)
	}
	return result, nil
}
