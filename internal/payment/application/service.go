package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/tracing"
)

// fallbackLocation is sent when no address source produced anything; the
// backend never receives an empty location.
const fallbackLocation = "por confirmar / to be confirmed"

// ErrAttemptInFlight means another pay request for the same session is
// between order creation and the ledger write.
var ErrAttemptInFlight = errors.New("payment attempt already in flight")

const (
	EventOrderPlaced       = "CheckoutOrderPlaced"
	EventPaymentAuthorized = "CheckoutPaymentAuthorized"
	EventPaymentFailed     = "CheckoutPaymentFailed"
)

// Request carries everything the handoff needs for one pay call.
type Request struct {
	SessionID string
	Token     string
	Items     []domain.OrderItem

	AmountCents int64
	Currency    string

	// Location sources, in preference order.
	Location      string // committed in-memory location
	Address       string
	Reference     string
	StreetNumber  string
	CachedAddress string

	DocumentType   string
	DocumentNumber string
	CardholderName string

	Hosted bool
	Card   domain.Card
}

// Result is the outcome of a handoff. RedirectURL is set on the hosted
// path; Authorized on the card path.
type Result struct {
	OrderID     string
	RedirectURL string
	Authorized  bool
}

// Service drives the strict order → intent → confirmation sequence.
type Service struct {
	log       *slog.Logger
	backend   BackendAPI
	processor Processor
	ledger    AttemptLedger
	claims    Claims
	tracer    trace.Tracer
}

func NewService(log *slog.Logger, backend BackendAPI, processor Processor, ledger AttemptLedger, claims Claims) *Service {
	return &Service{
		log:       log,
		backend:   backend,
		processor: processor,
		ledger:    ledger,
		claims:    claims,
		tracer:    otel.Tracer("payment-handoff"),
	}
}

// resolveLocation walks the fallback chain for the order's location
// string: in-memory location, synthesized address, cached address, fixed
// placeholder.
func resolveLocation(req Request) string {
	if req.Location != "" {
		return req.Location
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{req.Address, req.Reference, req.StreetNumber} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if req.CachedAddress != "" {
		return req.CachedAddress
	}
	return fallbackLocation
}

// Pay runs the handoff. The steps never reorder: the order must exist with
// a non-empty ID before any payment call, and a retry after a failed
// confirmation reuses the attempt's order instead of creating another.
func (s *Service) Pay(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentHandoff")
	defer span.End()

	attempt, found, err := s.ledger.Find(ctx, req.SessionID)
	if err != nil {
		return Result{}, fmt.Errorf("attempt lookup: %w", err)
	}

	orderID := attempt.OrderID
	if !found || orderID == "" {
		orderID, err = s.placeOrder(ctx, req)
		if err != nil {
			return Result{}, err
		}
	} else {
		s.log.Info("reusing order for retried payment", "session", req.SessionID, "order_id", orderID)
	}

	if req.Hosted {
		url, err := s.backend.HostedPay(ctx, req.Token, orderID, req.AmountCents)
		if err != nil {
			return Result{OrderID: orderID}, fmt.Errorf("hosted pay: %w", err)
		}
		return Result{OrderID: orderID, RedirectURL: url}, nil
	}

	secret, err := s.backend.CreateIntent(ctx, IntentInput{
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		CardholderName: req.CardholderName,
	})
	if err != nil {
		return Result{OrderID: orderID}, fmt.Errorf("create payment intent: %w", err)
	}

	if err := s.processor.ConfirmCard(ctx, secret, req.CardholderName, req.Card); err != nil {
		s.recordResult(ctx, req.SessionID, domain.StatusFailed, err.Error(),
			EventPaymentFailed, domain.PaymentFailed{OrderID: orderID, Reason: err.Error()})
		// the order stays created-but-unpaid; the processor message flows
		// through untouched
		return Result{OrderID: orderID}, err
	}

	s.recordResult(ctx, req.SessionID, domain.StatusAuthorized, "",
		EventPaymentAuthorized, domain.PaymentAuthorized{OrderID: orderID, AmountCents: req.AmountCents})
	return Result{OrderID: orderID, Authorized: true}, nil
}

func (s *Service) placeOrder(ctx context.Context, req Request) (string, error) {
	key := s.claims.Key(req.SessionID)
	ok, err := s.claims.Acquire(ctx, key)
	if err != nil {
		return "", fmt.Errorf("attempt claim: %w", err)
	}
	if !ok {
		return "", ErrAttemptInFlight
	}

	orderID, err := s.backend.CreateOrder(ctx, req.Token, req.Items, resolveLocation(req))
	if err != nil {
		_ = s.claims.Release(ctx, key)
		return "", fmt.Errorf("create order: %w", err)
	}
	if orderID == "" {
		_ = s.claims.Release(ctx, key)
		return "", errors.New("create order: backend returned no order id")
	}

	now := time.Now().UTC()
	attempt := domain.Attempt{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		OrderID:     orderID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      domain.StatusOrderCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, _ := json.Marshal(domain.OrderPlaced{
		OrderID:     orderID,
		SessionID:   req.SessionID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	// Claim is kept until its TTL: if this write fails the claim still
	// blocks a duplicate order until an operator looks.
	if err := s.ledger.Begin(ctx, attempt, EventOrderPlaced, payload, tracing.Traceparent(ctx)); err != nil {
		return "", fmt.Errorf("record attempt: %w", err)
	}
	return orderID, nil
}

func (s *Service) recordResult(ctx context.Context, sessionID string, status domain.Status, detail, eventType string, event any) {
	payload, _ := json.Marshal(event)
	if err := s.ledger.MarkResult(ctx, sessionID, status, detail, eventType, payload, tracing.Traceparent(ctx)); err != nil {
		// never turn a bookkeeping failure into a user-facing payment error
		s.log.Error("attempt result write failed", "session", sessionID, "status", status, "err", err)
	}
}
