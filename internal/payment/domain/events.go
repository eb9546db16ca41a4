package domain

// Checkout lifecycle events, relayed to Kafka through the outbox.

type OrderPlaced struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type PaymentAuthorized struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
