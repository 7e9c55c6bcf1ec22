package models

import "time"

// Entitlement is the narrow second-opinion feature flag, independent of
// the general subscription state.
type Entitlement struct {
	Active        bool      `json:"active"`
	ActivatedAt   time.Time `json:"activated_at"`
	Source        string    `json:"source"`
	EntitlementID string    `json:"entitlement_id"`
}

// SecondOpinionUsage is the per-user usage counter blob for the
// second-opinion feature. Missing or malformed stored data is read as
// the zero value.
type SecondOpinionUsage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Remaining reports how many uses are left, never negative.
func (u SecondOpinionUsage) Remaining() int {
	if u.Limit <= u.Used {
		return 0
	}
	return u.Limit - u.Used
}
