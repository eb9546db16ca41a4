// Package domain models one payment attempt: the order it created, the
// money involved and how far the handoff got.
package domain

import "time"

type Status string

const (
	// StatusOrderCreated means the order exists but no payment has been
	// authorized yet. Attempts stay here across failed confirmations.
	StatusOrderCreated Status = "order_created"
	StatusAuthorized   Status = "authorized"
	StatusFailed       Status = "failed"
)

// Attempt is the durable record of one checkout attempt. Its OrderID is
// what makes retries idempotent: as long as the attempt row exists, no
// second order is created for the session.
type Attempt struct {
	ID          string
	SessionID   string
	OrderID     string
	AmountCents int64
	Currency    string
	Status      Status
	Detail      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is a cart line reduced to what order creation needs.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Card carries the raw card fields through to the processor. They are
// never logged and never persisted.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

// ProcessorError is a confirmation failure as reported by the payment
// processor. Its message is surfaced to the user verbatim.
type ProcessorError struct {
	Message string
}

func (e *ProcessorError) Error() string { return e.Message }
