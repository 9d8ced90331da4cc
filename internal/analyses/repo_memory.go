package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for dev mode and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]Analysis
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Analysis{}}
}

func (r *MemoryRepo) Create(ctx context.Context, a Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[a.ID] = a
	r.order = append(r.order, a.ID)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Analysis, 0, limit)
	skipped := 0
	// Insertion order is oldest first; walk backwards for newest first.
	for i := len(r.order) - 1; i >= 0; i-- {
		a, ok := r.byID[r.order[i]]
		if !ok || a.UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, a := range r.byID {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) MarkReviewed(ctx context.Context, id string, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Reviewed = true
	a.Correct = &correct
	r.byID[id] = a
	return nil
}

func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.byID {
		if a.UserID == userID {
			delete(r.byID, id)
			n++
		}
	}
	r.compactLocked()
	return n, nil
}

func (r *MemoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.byID {
		if a.CreatedAt.Before(cutoff) {
			delete(r.byID, id)
			n++
		}
	}
	r.compactLocked()
	return n, nil
}

func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st Stats
	for _, a := range r.byID {
		st.TotalAnalyses++
		switch {
		case a.Uncertain():
			st.TotalUncertain++
		case a.Verdict == VerdictAuthentic:
			st.TotalReal++
		default:
			st.TotalFake++
		}
		if a.Reviewed {
			st.TotalReviews++
			if a.Correct != nil && *a.Correct {
				st.CorrectVotes++
			}
		}
	}
	return st, nil
}

func (r *MemoryRepo) compactLocked() {
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.byID[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

var _ Repo = (*MemoryRepo)(nil)
