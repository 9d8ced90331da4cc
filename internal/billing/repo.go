package billing

import "context"

// Repo persists subscriptions.
type Repo interface {
	Create(ctx context.Context, sub Subscription) error
	// CurrentByUser returns the newest subscription that is not canceled,
	// or ErrNotFound.
	CurrentByUser(ctx context.Context, userID string) (Subscription, error)
	ByProviderID(ctx context.Context, providerID string) (Subscription, error)
	Update(ctx context.Context, sub Subscription) error
}
