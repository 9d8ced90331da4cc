package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"veriglow-backend/internal/shared/auth"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// Service manages webhook registrations and fans events out to them.
type Service struct {
	Repo   Repo
	Client *http.Client

	now func() time.Time
}

// NewService returns a Service backed by the given repo. The HTTP client
// is used for outbound deliveries and callback notifications.
func NewService(repo Repo) *Service {
	return &Service{
		Repo:   repo,
		Client: &http.Client{Timeout: deliveryTimeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a webhook for the user. The secret is optional; when set
// it is echoed back on every delivery so the receiver can authenticate us.
func (s *Service) Create(ctx context.Context, userID, rawURL, secret string, events []string) (Webhook, error) {
	target := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Webhook{}, &ValidationError{Message: "Invalid webhook URL"}
	}
	if len(events) == 0 {
		return Webhook{}, &ValidationError{Message: "At least one event is required"}
	}
	seen := make(map[string]bool, len(events))
	cleaned := make([]string, 0, len(events))
	for _, event := range events {
		event = strings.TrimSpace(event)
		if !KnownEvent(event) {
			return Webhook{}, &ValidationError{Message: fmt.Sprintf("Unknown event: %s", event)}
		}
		if seen[event] {
			continue
		}
		seen[event] = true
		cleaned = append(cleaned, event)
	}

	// Deliveries are always signed, so a registration without a secret gets
	// a generated one. It is returned exactly once, in the create response.
	secret = strings.TrimSpace(secret)
	if secret == "" {
		secret = auth.NewSecret()
	}

	now := s.now()
	hook := Webhook{
		ID:        uuid.NewString(),
		UserID:    userID,
		URL:       target,
		Secret:    secret,
		Events:    cleaned,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, hook); err != nil {
		return Webhook{}, fmt.Errorf("webhooks: create: %w", err)
	}
	return hook, nil
}

// List returns the user's webhooks, oldest first.
func (s *Service) List(ctx context.Context, userID string) ([]Webhook, error) {
	return s.Repo.ListByUser(ctx, userID)
}

// Delete removes a webhook the user owns. A webhook owned by someone else
// reads as not found so ids cannot be probed.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	hook, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if hook.UserID != userID {
		return ErrNotFound
	}
	return s.Repo.Delete(ctx, id)
}

// DeleteAllForUser removes every webhook the user owns. Part of account
// deletion.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	hooks, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		if err := s.Repo.Delete(ctx, hook.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// Deliveries returns recent delivery attempts for a webhook the user owns,
// newest first.
func (s *Service) Deliveries(ctx context.Context, userID, id string, limit int) ([]Delivery, error) {
	hook, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if hook.UserID != userID {
		return nil, ErrNotFound
	}
	if limit <= 0 {
		limit = defaultDeliveryLimit
	}
	if limit > maxDeliveryLimit {
		limit = maxDeliveryLimit
	}
	return s.Repo.ListDeliveries(ctx, id, limit)
}
