package admin

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryFlagRepo is an in-process FlagRepo for tests and dev mode.
type MemoryFlagRepo struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

func NewMemoryFlagRepo() *MemoryFlagRepo {
	return &MemoryFlagRepo{flags: make(map[string]Flag)}
}

func (r *MemoryFlagRepo) Insert(ctx context.Context, f Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[f.ID] = f
	return nil
}

func (r *MemoryFlagRepo) GetByID(ctx context.Context, id string) (Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[id]
	if !ok {
		return Flag{}, ErrNotFound
	}
	return f, nil
}

func (r *MemoryFlagRepo) ListByStatus(ctx context.Context, status string, limit int) ([]Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Flag
	for _, f := range r.flags {
		if f.Status == status {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryFlagRepo) Resolve(ctx context.Context, id, resolvedBy, resolution string, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = FlagResolved
	f.ResolvedBy = resolvedBy
	f.Resolution = resolution
	f.ResolvedAt = &resolvedAt
	r.flags[id] = f
	return nil
}

var _ FlagRepo = (*MemoryFlagRepo)(nil)
