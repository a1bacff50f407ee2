package models

import "time"

// OrderStatus tracks a payment order through checkout.
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// Order is a gateway order for a plan upgrade. ID is the gateway's order id.
type Order struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	PlanTier    PlanTier    `json:"plan_tier"`
	AmountMinor int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Receipt     string      `json:"receipt"`
	Status      OrderStatus `json:"status"`
	PaymentID   string      `json:"payment_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
}
