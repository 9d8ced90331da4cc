package billing

import "errors"

var (
	// ErrNotFound means the user has no current subscription.
	ErrNotFound = errors.New("subscription not found")

	// ErrUnknownPlan rejects plan ids outside the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrFreePlan rejects subscribing to the free tier. Canceling is how a
	// user lands on free.
	ErrFreePlan = errors.New("the free plan does not need a subscription")

	// ErrProvider wraps failures talking to the billing provider.
	ErrProvider = errors.New("billing provider error")
)
