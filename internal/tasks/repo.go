package tasks

import "context"

// Repo persists task lifecycle records.
type Repo interface {
	Create(ctx context.Context, t Task) error
	GetByID(ctx context.Context, id string) (Task, error)
	// MarkProgress moves the task to PROGRESS and updates the counters.
	MarkProgress(ctx context.Context, id string, current, total int, status string) error
	// MarkPending returns a task to PENDING, used between retry attempts.
	MarkPending(ctx context.Context, id, status string) error
	MarkSuccess(ctx context.Context, id string, result []byte) error
	MarkFailure(ctx context.Context, id, errMsg string) error
	// IncAttempts bumps the execution counter and returns the new value.
	IncAttempts(ctx context.Context, id string) (int, error)
}
