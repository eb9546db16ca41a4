// Package address owns the interactive address picking state for one
// checkout session: the free-text query, the debounced suggestion list,
// the map marker and the committed display address.
package address

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/FreddRva/posoqo-checkout/internal/geocoding"
)

// Geocoder is the slice of the geocoding client the controller needs.
type Geocoder interface {
	Search(ctx context.Context, query string) []geocoding.Candidate
	Reverse(ctx context.Context, lat, lng float64) (string, bool)
}

// Committed is the resolved (coordinates, display address) tuple handed to
// the profile layer when the user picks a location.
type Committed struct {
	Lat         float64
	Lng         float64
	DisplayName string
}

const defaultDebounce = 400 * time.Millisecond

// Controller serializes all address picking for a session. Suggestion
// fetches carry the generation current at schedule time; a fetch whose
// generation is stale by the time it resolves is discarded, so results for
// a superseded query can never overwrite the current query's list.
type Controller struct {
	log      *slog.Logger
	geo      Geocoder
	debounce time.Duration
	onCommit func(Committed)

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	query       string
	suggestions []geocoding.Candidate
	lat, lng    float64
	committed   string
	hasAddress  bool
	timer       *time.Timer
	generation  uint64
}

type Option func(*Controller)

// WithDebounce overrides the suggestion debounce interval, mainly for tests.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithMarker sets the initial marker position.
func WithMarker(lat, lng float64) Option {
	return func(c *Controller) { c.lat, c.lng = lat, lng }
}

// NewController builds a controller bound to the session's lifetime.
// onCommit is invoked, without internal locks held, every time a display
// address is resolved.
func NewController(log *slog.Logger, geo Geocoder, onCommit func(Committed), opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		log:      log,
		geo:      geo,
		debounce: defaultDebounce,
		onCommit: onCommit,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetQuery records a keystroke. An empty query clears the suggestions and
// cancels any scheduled fetch; otherwise one fetch is scheduled a debounce
// interval after this call, replacing whatever was scheduled before.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.query = query
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if query == "" {
		c.suggestions = nil
		return
	}

	gen := c.generation
	c.timer = time.AfterFunc(c.debounce, func() {
		c.fetchSuggestions(gen, query)
	})
}

func (c *Controller) fetchSuggestions(gen uint64, query string) {
	if c.ctx.Err() != nil {
		return
	}
	results := c.geo.Search(c.ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.log.Debug("stale suggestions discarded", "query", query)
		return
	}
	c.suggestions = results
}

// Suggestions returns a copy of the current suggestion list.
func (c *Controller) Suggestions() []geocoding.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]geocoding.Candidate, len(c.suggestions))
	copy(out, c.suggestions)
	return out
}

// Commit picks the candidate at index (the first when index is negative or
// out of range), recenters the marker on it and resolves its display
// address. With no suggestions yet it runs the search synchronously, which
// is the explicit "search" button path. Returns false when nothing could
// be resolved.
func (c *Controller) Commit(index int) (Committed, bool) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	candidates := c.suggestions
	query := c.query
	c.generation++
	c.mu.Unlock()

	if len(candidates) == 0 {
		if query == "" {
			return Committed{}, false
		}
		candidates = c.geo.Search(c.ctx, query)
		if len(candidates) == 0 {
			return Committed{}, false
		}
	}
	if index < 0 || index >= len(candidates) {
		index = 0
	}
	pick := candidates[index]
	committed := Committed{Lat: pick.Lat, Lng: pick.Lng, DisplayName: pick.DisplayName}

	c.mu.Lock()
	c.lat, c.lng = pick.Lat, pick.Lng
	c.committed = pick.DisplayName
	c.hasAddress = true
	c.mu.Unlock()

	if c.onCommit != nil {
		c.onCommit(committed)
	}
	return committed, true
}

// MoveMarker handles a map drag or click: the marker always follows, and
// the committed address updates only when the reverse lookup succeeds. A
// failed lookup never blanks the previous address text.
func (c *Controller) MoveMarker(lat, lng float64) {
	c.mu.Lock()
	c.lat, c.lng = lat, lng
	c.mu.Unlock()

	name, ok := c.geo.Reverse(c.ctx, lat, lng)
	if !ok {
		c.log.Debug("reverse lookup failed, keeping previous address", "lat", lat, "lng", lng)
		return
	}

	c.mu.Lock()
	c.committed = name
	c.hasAddress = true
	c.mu.Unlock()

	if c.onCommit != nil {
		c.onCommit(Committed{Lat: lat, Lng: lng, DisplayName: name})
	}
}

// Marker returns the current marker position.
func (c *Controller) Marker() (lat, lng float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lat, c.lng
}

// Committed returns the resolved display address, if any.
func (c *Controller) Committed() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed, c.hasAddress
}

// Close cancels the pending debounce and marks in-flight fetches stale.
// Called on session teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.mu.Unlock()
	c.cancel()
}
