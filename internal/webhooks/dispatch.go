package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/telemetry"
)

const (
	deliveryTimeout    = 10 * time.Second
	deliveryRetryPause = time.Second
)

// SecretHeader carries the webhook's stored secret on every delivery.
// SignatureHeader is a hex HMAC-SHA256 of the request body, present only
// when the webhook has a secret.
const (
	SecretHeader    = "X-Webhook-Secret"
	SignatureHeader = "X-Webhook-Signature"
)

type envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatch fans the event out to the user's webhooks in the background.
// The triggering request never waits on a third-party receiver.
func (s *Service) Dispatch(_ context.Context, userID, event string, data any) {
	if userID == "" {
		return
	}
	go func() {
		if err := s.DispatchNow(context.Background(), userID, event, data); err != nil {
			telemetry.Error("webhooks.dispatch_failed", map[string]any{
				"event": event,
				"error": err.Error(),
			})
		}
	}()
}

// DispatchNow delivers the event to every matching active webhook the user
// owns and records one delivery row per webhook. Failed deliveries are
// recorded, not returned, so one broken receiver cannot hide another.
func (s *Service) DispatchNow(ctx context.Context, userID, event string, data any) error {
	hooks, err := s.Repo.ListActiveByEvent(ctx, userID, event)
	if err != nil {
		return fmt.Errorf("webhooks: list for %s: %w", event, err)
	}
	if len(hooks) == 0 {
		return nil
	}
	body, err := json.Marshal(envelope{Event: event, Data: data, Timestamp: s.now()})
	if err != nil {
		return fmt.Errorf("webhooks: encode %s: %w", event, err)
	}
	for _, hook := range hooks {
		d := s.deliver(ctx, hook, event, body)
		if d.Success {
			metrics.IncWebhookDelivered()
		} else {
			metrics.IncWebhookFailed()
			telemetry.Warn("webhooks.delivery_failed", map[string]any{
				"webhook_id": hook.ID,
				"event":      event,
				"status":     d.StatusCode,
				"error":      d.Error,
			})
		}
		if err := s.Repo.RecordDelivery(ctx, d); err != nil {
			telemetry.Error("webhooks.record_failed", map[string]any{
				"webhook_id": hook.ID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// deliver posts the event to one webhook. A network error or 5xx gets a
// single retry; the delivery row reflects the last attempt.
func (s *Service) deliver(ctx context.Context, hook Webhook, event string, body []byte) Delivery {
	start := time.Now()
	status, err := s.post(ctx, hook.URL, hook.Secret, body)
	if err != nil || status >= http.StatusInternalServerError {
		select {
		case <-time.After(deliveryRetryPause):
			status, err = s.post(ctx, hook.URL, hook.Secret, body)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	d := Delivery{
		ID:         uuid.NewString(),
		WebhookID:  hook.ID,
		Event:      event,
		StatusCode: status,
		Success:    err == nil && status < http.StatusBadRequest,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  s.now(),
	}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}

func (s *Service) post(ctx context.Context, url, secret string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, secret)
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set(SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}
	res, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	return res.StatusCode, nil
}

// Notify posts a one-off callback to a caller-supplied URL. There is no
// registration behind it, so nothing is signed or recorded.
func (s *Service) Notify(ctx context.Context, url, event string, data any) error {
	body, err := json.Marshal(envelope{Event: event, Data: data, Timestamp: s.now()})
	if err != nil {
		return err
	}
	status, err := s.post(ctx, url, "", body)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("webhooks: callback HTTP %d", status)
	}
	return nil
}
