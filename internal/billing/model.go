// Package billing manages paid plans: the catalog, provider subscriptions,
// and the webhook that keeps local state in sync with the provider.
package billing

import (
	"time"

	"veriglow-backend/internal/usage"
)

// Subscription lifecycle states.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Subscription is one provider subscription for a user. A user has at most
// one that is not canceled.
type Subscription struct {
	ID                string     `json:"id"`
	UserID            string     `json:"-"`
	Plan              string     `json:"plan"`
	Status            string     `json:"status"`
	ProviderID        string     `json:"provider_id,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Plan is a catalog entry. MonthlyQuota 0 means no cap.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MonthlyQuota int    `json:"monthly_quota"`
	PriceCents   int    `json:"price_cents"`
}

// Plans returns the purchasable catalog. Quotas come from the usage package
// so billing and quota enforcement cannot drift apart.
func Plans() []Plan {
	return []Plan{
		{ID: usage.PlanFree, Name: "Free", MonthlyQuota: usage.QuotaFor(usage.PlanFree), PriceCents: 0},
		{ID: usage.PlanPro, Name: "Pro", MonthlyQuota: usage.QuotaFor(usage.PlanPro), PriceCents: 999},
		{ID: usage.PlanEnterprise, Name: "Enterprise", MonthlyQuota: usage.QuotaFor(usage.PlanEnterprise), PriceCents: 4999},
	}
}
