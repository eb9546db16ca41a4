package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/sentinel"
)

// Processor drives the card confirmation call against the payment
// processor. The processor's decline message is passed through verbatim;
// transport problems are classified as unavailable instead.
type Processor struct {
	log     *slog.Logger
	hc      *http.Client
	baseURL string
}

type ProcessorOption func(*Processor)

func WithProcessorHTTPClient(h *http.Client) ProcessorOption {
	return func(p *Processor) { p.hc = h }
}

func NewProcessor(log *slog.Logger, baseURL string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		log:     log,
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) ConfirmCard(ctx context.Context, clientSecret, cardholderName string, card domain.Card) error {
	payload := struct {
		ClientSecret   string `json:"client_secret"`
		CardholderName string `json:"cardholder_name"`
		Card           struct {
			Number   string `json:"number"`
			ExpMonth string `json:"exp_month"`
			ExpYear  string `json:"exp_year"`
			CVC      string `json:"cvc"`
		} `json:"card"`
	}{ClientSecret: clientSecret, CardholderName: cardholderName}
	payload.Card.Number = card.Number
	payload.Card.ExpMonth = card.ExpMonth
	payload.Card.ExpYear = card.ExpYear
	payload.Card.CVC = card.CVC

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/confirm", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("card confirmation: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	var decline struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decline); err == nil && decline.Error.Message != "" {
		return &domain.ProcessorError{Message: decline.Error.Message}
	}
	return fmt.Errorf("card confirmation: status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
}
