package billing

import (
	"context"
	"sync"
)

// MemoryRepo is an in-process Repo for tests and dev mode.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Subscription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Subscription)}
}

func (r *MemoryRepo) Create(ctx context.Context, sub Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sub.ID] = sub
	return nil
}

func (r *MemoryRepo) CurrentByUser(ctx context.Context, userID string) (Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var current Subscription
	found := false
	for _, sub := range r.byID {
		if sub.UserID != userID || sub.Status == StatusCanceled {
			continue
		}
		if !found || sub.CreatedAt.After(current.CreatedAt) {
			current = sub
			found = true
		}
	}
	if !found {
		return Subscription{}, ErrNotFound
	}
	return current, nil
}

func (r *MemoryRepo) ByProviderID(ctx context.Context, providerID string) (Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sub := range r.byID {
		if sub.ProviderID == providerID {
			return sub, nil
		}
	}
	return Subscription{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, sub Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[sub.ID]; !ok {
		return ErrNotFound
	}
	r.byID[sub.ID] = sub
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
