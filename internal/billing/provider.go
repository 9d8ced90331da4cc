package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProviderSubscription is what the payment provider reports back after
// creating a subscription.
type ProviderSubscription struct {
	ID        string
	Status    string
	PeriodEnd time.Time
}

// Provider creates and cancels subscriptions with the payment processor.
type Provider interface {
	Create(ctx context.Context, email, userID, plan string) (ProviderSubscription, error)
	Cancel(ctx context.Context, providerID string) error
}

// Placeholder stands in when no billing key is configured. It hands out
// deterministic-looking local ids so the rest of the flow is exercisable in
// dev mode without charging anyone.
type Placeholder struct{}

func (Placeholder) Create(ctx context.Context, email, userID, plan string) (ProviderSubscription, error) {
	return ProviderSubscription{
		ID:        "sub_local_" + uuid.NewString(),
		Status:    StatusActive,
		PeriodEnd: time.Now().UTC().Add(30 * 24 * time.Hour),
	}, nil
}

func (Placeholder) Cancel(ctx context.Context, providerID string) error {
	return nil
}

var _ Provider = Placeholder{}
