package audit

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu     sync.RWMutex
	events []Event
	nextID int64
}

// NewMemoryRepo constructs an in-memory audit repo for dev and tests.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1}
}

func (r *MemoryRepo) Insert(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.nextID
	r.nextID++
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	return r.list(ctx, limit, func(e Event) bool { return e.UserID == userID })
}

func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return r.list(ctx, limit, func(Event) bool { return true })
}

func (r *MemoryRepo) list(ctx context.Context, limit int, keep func(Event) bool) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(r.events[i]) {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
