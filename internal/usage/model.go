package usage

import "time"

// Usage is a user's quota consumption inside the current window. A Limit of
// UnlimitedQuota means the plan has no cap.
type Usage struct {
	Plan     string    `json:"plan"`
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resets_at"`
}

// Unlimited reports whether the plan has no monthly cap.
func (u Usage) Unlimited() bool {
	return u.Limit == UnlimitedQuota
}

// Remaining returns how many analyses are left in the window, or 0 for
// uncapped plans.
func (u Usage) Remaining() int {
	if u.Unlimited() || u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}
