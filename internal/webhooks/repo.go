package webhooks

import "context"

// Repo persists webhook registrations and their delivery log.
type Repo interface {
	Create(ctx context.Context, hook Webhook) error
	GetByID(ctx context.Context, id string) (Webhook, error)
	ListByUser(ctx context.Context, userID string) ([]Webhook, error)
	// ListActiveByEvent returns the user's active webhooks subscribed to
	// event.
	ListActiveByEvent(ctx context.Context, userID, event string) ([]Webhook, error)
	Delete(ctx context.Context, id string) error

	RecordDelivery(ctx context.Context, d Delivery) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error)
}
