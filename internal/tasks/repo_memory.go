package tasks

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps tasks in process memory. Used in dev mode and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Task
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Task)}
}

func (r *MemoryRepo) Create(ctx context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = t
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) MarkProgress(ctx context.Context, id string, current, total int, status string) error {
	return r.update(id, func(t *Task) {
		t.State = StateProgress
		t.Current = current
		t.Total = total
		t.Status = status
	})
}

func (r *MemoryRepo) MarkPending(ctx context.Context, id, status string) error {
	return r.update(id, func(t *Task) {
		t.State = StatePending
		t.Status = status
	})
}

func (r *MemoryRepo) MarkSuccess(ctx context.Context, id string, result []byte) error {
	return r.update(id, func(t *Task) {
		t.State = StateSuccess
		t.Status = ""
		t.Result = append([]byte(nil), result...)
		t.Error = ""
	})
}

func (r *MemoryRepo) MarkFailure(ctx context.Context, id, errMsg string) error {
	return r.update(id, func(t *Task) {
		t.State = StateFailure
		t.Status = ""
		t.Error = errMsg
	})
}

func (r *MemoryRepo) IncAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.update(id, func(t *Task) {
		t.Attempts++
		attempts = t.Attempts
	})
	return attempts, err
}

func (r *MemoryRepo) update(id string, fn func(*Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	r.byID[id] = t
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
