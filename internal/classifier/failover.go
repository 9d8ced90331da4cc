package classifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"veriglow-backend/internal/shared/telemetry"
)

const (
	failureThreshold = 3
	backendCooldown  = 5 * time.Minute
)

// Backend is a named classifier in a failover chain.
type Backend struct {
	Name       string
	Classifier Classifier
}

// Failover tries backends in order, skipping any that recently failed. Three
// consecutive failures put a backend on a five-minute cooldown; each success
// decays the count by one.
type Failover struct {
	backends []Backend

	mu        sync.Mutex
	failures  map[string]int
	downUntil map[string]time.Time
	now       func() time.Time
}

var _ Classifier = (*Failover)(nil)

func NewFailover(backends ...Backend) *Failover {
	return &Failover{
		backends:  backends,
		failures:  make(map[string]int),
		downUntil: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (f *Failover) Classify(ctx context.Context, text string) (Prediction, error) {
	if len(f.backends) == 0 {
		return Prediction{}, errors.New("no classifier backends registered")
	}

	var lastErr error
	attempted := false
	for _, b := range f.backends {
		if !f.available(b.Name) {
			continue
		}
		attempted = true
		pred, err := f.try(ctx, b, text)
		if err != nil {
			lastErr = err
			continue
		}
		return pred, nil
	}

	if !attempted {
		// Everything is cooling down. Retry the primary rather than fail the
		// request with no attempt at all.
		return f.try(ctx, f.backends[0], text)
	}
	return Prediction{}, lastErr
}

func (f *Failover) try(ctx context.Context, b Backend, text string) (Prediction, error) {
	pred, err := b.Classifier.Classify(ctx, text)
	if err != nil {
		f.recordFailure(b.Name)
		telemetry.Warn("classifier.backend_failed", map[string]any{
			"backend": b.Name,
			"error":   err.Error(),
		})
		return Prediction{}, err
	}
	f.recordSuccess(b.Name)
	return pred, nil
}

func (f *Failover) available(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	until, ok := f.downUntil[name]
	if !ok {
		return true
	}
	if f.now().Before(until) {
		return false
	}
	delete(f.downUntil, name)
	f.failures[name] = 0
	return true
}

func (f *Failover) recordFailure(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[name]++
	if f.failures[name] >= failureThreshold {
		f.downUntil[name] = f.now().Add(backendCooldown)
	}
}

func (f *Failover) recordSuccess(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures[name] > 0 {
		f.failures[name]--
	}
}

// BackendStatus is a point-in-time health snapshot of one backend.
type BackendStatus struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Failures int    `json:"failures"`
}

// Status reports backend health in chain order for health and admin
// endpoints.
func (f *Failover) Status() []BackendStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]BackendStatus, 0, len(f.backends))
	for _, b := range f.backends {
		until, down := f.downUntil[b.Name]
		out = append(out, BackendStatus{
			Name:     b.Name,
			Healthy:  !down || !now.Before(until),
			Failures: f.failures[b.Name],
		})
	}
	return out
}
