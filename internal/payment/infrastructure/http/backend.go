// Package http implements the backend and processor payment contracts.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FreddRva/posoqo-checkout/internal/payment/application"
	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/sentinel"
)

// Backend talks to the storefront backend's order and payment endpoints.
type Backend struct {
	log     *slog.Logger
	hc      *http.Client
	baseURL string
}

type BackendOption func(*Backend)

func WithBackendHTTPClient(h *http.Client) BackendOption {
	return func(b *Backend) { b.hc = h }
}

func NewBackend(log *slog.Logger, baseURL string, opts ...BackendOption) *Backend {
	b := &Backend{
		log:     log,
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) CreateOrder(ctx context.Context, token string, items []domain.OrderItem, location string) (string, error) {
	payload := struct {
		Items    []domain.OrderItem `json:"items"`
		Location string             `json:"location"`
	}{Items: items, Location: location}

	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := b.post(ctx, "/protected/orders", token, payload, &out); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("order response without order_id: %w", sentinel.ErrUnavailable)
	}
	return out.OrderID, nil
}

func (b *Backend) CreateIntent(ctx context.Context, in application.IntentInput) (string, error) {
	payload := struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Metadata map[string]string `json:"metadata"`
	}{
		Amount:   in.AmountCents,
		Currency: in.Currency,
		Metadata: map[string]string{
			"document_type":   in.DocumentType,
			"document_number": in.DocumentNumber,
			"cardholder_name": in.CardholderName,
		},
	}

	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := b.post(ctx, "/create-payment-intent", "", payload, &out); err != nil {
		return "", err
	}
	if out.ClientSecret == "" {
		return "", fmt.Errorf("intent response without clientSecret: %w", sentinel.ErrUnavailable)
	}
	return out.ClientSecret, nil
}

func (b *Backend) HostedPay(ctx context.Context, token, orderID string, amountCents int64) (string, error) {
	payload := struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
	}{Type: "order", ID: orderID, Amount: amountCents}

	var out struct {
		URL string `json:"url"`
	}
	if err := b.post(ctx, "/pay", token, payload, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("pay response without url: %w", sentinel.ErrUnavailable)
	}
	return out.URL, nil
}

func (b *Backend) post(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", path, sentinel.ErrUnauthorized)
	default:
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, sentinel.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}
