package usage

import "time"

// Plan identifiers. They match the values stored on the user record and in
// subscriptions.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// UnlimitedQuota marks a plan with no monthly cap.
const UnlimitedQuota = 0

// windowLength is the rolling quota window. Consumption resets when the
// window expires.
const windowLength = 30 * 24 * time.Hour

// planQuotas maps each plan to its monthly analysis quota.
var planQuotas = map[string]int{
	PlanFree:       50,
	PlanPro:        1000,
	PlanEnterprise: UnlimitedQuota,
}

// QuotaFor returns the monthly quota for a plan. Unknown plans get the free
// quota.
func QuotaFor(plan string) int {
	if quota, ok := planQuotas[plan]; ok {
		return quota
	}
	return planQuotas[PlanFree]
}

// KnownPlan reports whether plan is one of the billable plans.
func KnownPlan(plan string) bool {
	_, ok := planQuotas[plan]
	return ok
}

func defaultUsage(now time.Time) Usage {
	return Usage{
		Plan:     PlanFree,
		Limit:    QuotaFor(PlanFree),
		Used:     0,
		ResetsAt: now.Add(windowLength),
	}
}
