// Package http implements the remote profile contract over the storefront
// backend's REST API.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FreddRva/posoqo-checkout/internal/profile/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/sentinel"
)

type Client struct {
	log     *slog.Logger
	hc      *http.Client
	baseURL string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.hc = h }
}

func NewClient(log *slog.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		log:     log,
		hc:      &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, token string) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/profile", nil)
	if err != nil {
		return domain.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile fetch: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode); err != nil {
		return domain.Profile{}, fmt.Errorf("profile fetch: %w", err)
	}

	var p domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return domain.Profile{}, fmt.Errorf("profile fetch decode: %w", err)
	}
	return p, nil
}

func (c *Client) Update(ctx context.Context, token string, p domain.Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/profile", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("profile update: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode); err != nil {
		return fmt.Errorf("profile update: %w", err)
	}
	return nil
}

func classify(status int) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return sentinel.ErrUnauthorized
	case status == http.StatusNotFound:
		return sentinel.ErrNotFound
	default:
		return fmt.Errorf("status %d: %w", status, sentinel.ErrUnavailable)
	}
}
