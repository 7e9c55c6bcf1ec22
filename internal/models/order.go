package models

import "time"

// Order statuses as tracked through the checkout lifecycle.
const (
	OrderStatusCreated   = "created"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Service types a checkout can be started for.
const (
	ServiceTypeSubscription  = "subscription"
	ServiceTypeSecondOpinion = "second_opinion"
)

// PaymentOrder is a server-side checkout attempt. It is created per
// checkout and is not kept in the client-state store beyond the active
// checkout session.
type PaymentOrder struct {
	OrderID     string    // Provider order identifier
	UserUID     string    // Owner of the checkout attempt
	AmountPaise int64     // Amount in minor units
	Currency    string
	Description string
	ServiceType string
	Receipt     string // Internal receipt identifier
	Status      string
	PaymentID   string // Provider payment id, set after confirmation
	CreatedAt   time.Time
}
