// Package geocoding wraps the storefront's geocoding proxy. Both lookups
// degrade to empty results on any failure so a provider outage only turns
// off live suggestions, never the checkout itself.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Candidate is one ranked match for a free-text address query. Rank is the
// provider-supplied relevance position, starting at zero.
type Candidate struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	PlaceID     int64   `json:"place_id"`
	Rank        int     `json:"rank"`
}

const defaultMaxCandidates = 5

type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
	max     int
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMaxCandidates caps the suggestion list length.
func WithMaxCandidates(n int) Option {
	return func(c *Client) { c.max = n }
}

func NewClient(log *slog.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		log:     log,
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		max:     defaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResult mirrors the proxy's Nominatim-style payload; coordinates
// arrive as strings.
type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	PlaceID     int64  `json:"place_id"`
}

// Search resolves free text to ranked candidates. Any transport, status or
// decode failure yields an empty list.
func (c *Client) Search(ctx context.Context, query string) []Candidate {
	if query == "" {
		return nil
	}
	u := fmt.Sprintf("%s/geocoding/search?q=%s", c.baseURL, url.QueryEscape(query))
	var results []searchResult
	if !c.getJSON(ctx, u, &results) {
		return nil
	}

	candidates := make([]Candidate, 0, len(results))
	for _, res := range results {
		lat, errLat := strconv.ParseFloat(res.Lat, 64)
		lng, errLng := strconv.ParseFloat(res.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		candidates = append(candidates, Candidate{
			DisplayName: res.DisplayName,
			Lat:         lat,
			Lng:         lng,
			PlaceID:     res.PlaceID,
			Rank:        len(candidates),
		})
		if len(candidates) == c.max {
			break
		}
	}
	return candidates
}

// Reverse resolves coordinates to a display address. The second return is
// false when the lookup failed or produced no name.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, bool) {
	u := fmt.Sprintf("%s/geocoding/reverse?lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(strconv.FormatFloat(lat, 'f', -1, 64)),
		url.QueryEscape(strconv.FormatFloat(lng, 'f', -1, 64)))

	var result struct {
		DisplayName string `json:"display_name"`
	}
	if !c.getJSON(ctx, u, &result) || result.DisplayName == "" {
		return "", false
	}
	return result.DisplayName, true
}

func (c *Client) getJSON(ctx context.Context, u string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.log.Debug("geocoding request build failed", "err", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("geocoding request failed", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("geocoding non-2xx", "status", resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Debug("geocoding decode failed", "err", err)
		return false
	}
	return true
}
