package webhooks

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-process Repo for tests and dev mode.
type MemoryRepo struct {
	mu         sync.RWMutex
	hooks      map[string]Webhook
	deliveries map[string][]Delivery
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		hooks:      make(map[string]Webhook),
		deliveries: make(map[string][]Delivery),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, hook Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook.ID] = hook
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[id]
	if !ok {
		return Webhook{}, ErrNotFound
	}
	return hook, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Webhook
	for _, hook := range r.hooks {
		if hook.UserID == userID {
			out = append(out, hook)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListActiveByEvent(ctx context.Context, userID, event string) ([]Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Webhook
	for _, hook := range r.hooks {
		if hook.UserID != userID || !hook.Active {
			continue
		}
		for _, e := range hook.Events {
			if e == event {
				out = append(out, hook)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[id]; !ok {
		return ErrNotFound
	}
	delete(r.hooks, id)
	delete(r.deliveries, id)
	return nil
}

func (r *MemoryRepo) RecordDelivery(ctx context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[d.WebhookID] = append(r.deliveries[d.WebhookID], d)
	return nil
}

func (r *MemoryRepo) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.deliveries[webhookID]
	out := make([]Delivery, len(all))
	copy(out, all)
	// Newest first, like the pg repo.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
