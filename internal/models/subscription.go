package models

import "time"

// Subscription is the paid-access record for a user. A copy lives in the
// client-state store for cheap checks; the database row is authoritative.
//
// Active is advisory only: real activity is derived from ExpiresAt, so a
// record with Active=true but ExpiresAt in the past counts as expired.
type Subscription struct {
	PlanID       string    `json:"plan_id"`
	SubscribedAt time.Time `json:"subscribed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	PaymentID    string    `json:"payment_id"`
	OrderID      string    `json:"order_id"`
	Active       bool      `json:"active"`
}

// ActiveAt reports whether the subscription grants access at the given time.
func (s Subscription) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
