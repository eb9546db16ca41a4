package application

import (
	"context"

	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
)

// IntentInput is the payment-intent creation payload; the metadata fields
// end up on the processor-side record.
type IntentInput struct {
	AmountCents    int64
	Currency       string
	DocumentType   string
	DocumentNumber string
	CardholderName string
}

// BackendAPI is the storefront backend's order and payment surface.
type BackendAPI interface {
	// CreateOrder returns the new order's ID. Implementations must fail on
	// a missing ID rather than return an empty one.
	CreateOrder(ctx context.Context, token string, items []domain.OrderItem, location string) (string, error)
	// CreateIntent returns the processor client secret for the attempt.
	CreateIntent(ctx context.Context, in IntentInput) (string, error)
	// HostedPay returns the hosted payment page URL for the order.
	HostedPay(ctx context.Context, token, orderID string, amountCents int64) (string, error)
}

// Processor confirms a card payment against a previously created intent.
// A declined confirmation comes back as *domain.ProcessorError.
type Processor interface {
	ConfirmCard(ctx context.Context, clientSecret, cardholderName string, card domain.Card) error
}

// AttemptLedger is the durable one-order-per-attempt record. Begin and
// MarkResult write the matching outbox event in the same transaction.
type AttemptLedger interface {
	Find(ctx context.Context, sessionID string) (domain.Attempt, bool, error)
	Begin(ctx context.Context, a domain.Attempt, eventType string, payload []byte, traceparent string) error
	MarkResult(ctx context.Context, sessionID string, status domain.Status, detail, eventType string, payload []byte, traceparent string) error
}

// Claims guards the window between order creation and the ledger write
// against a concurrent double submit.
type Claims interface {
	Key(sessionID string) string
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
