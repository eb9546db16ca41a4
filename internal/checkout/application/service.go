package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FreddRva/posoqo-checkout/internal/address"
	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	"github.com/FreddRva/posoqo-checkout/internal/geocoding"
	paymentapp "github.com/FreddRva/posoqo-checkout/internal/payment/application"
	paymentdomain "github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// ErrNoSession means the session ID is unknown: expired, torn down or
// never started.
var ErrNoSession = errors.New("no active checkout session")

const (
	defaultAdvanceDelay = 2 * time.Second
	currency            = "pen"
)

// View is the session snapshot handed to the presentation layer.
type View struct {
	SessionID       string                      `json:"session_id"`
	Step            checkoutdomain.Step         `json:"step"`
	Profile         profiledomain.Profile       `json:"profile"`
	ProfileComplete bool                        `json:"profile_complete"`
	AddressComplete bool                        `json:"address_complete"`
	Cart            checkoutdomain.CartSnapshot `json:"cart"`
	TotalCents      int64                       `json:"total_cents"`
	Completed       bool                        `json:"completed"`
	LastError       string                      `json:"last_error,omitempty"`
	LastSuccess     string                      `json:"last_success,omitempty"`
}

// PayInput is what the payment step collects from the user.
type PayInput struct {
	CardholderName string
	Hosted         bool
	Card           paymentdomain.Card
}

// PayOutcome is a view plus the hosted redirect URL when that path was
// taken.
type PayOutcome struct {
	View        View
	RedirectURL string
}

// session pairs the domain state with the live pieces owned per session:
// the address controller and the auto-advance timer.
type session struct {
	mu      sync.Mutex
	data    checkoutdomain.Session
	addr    *address.Controller
	advance *time.Timer
}

// Service is the checkout step machine. It owns every active session and
// is the only writer of their state.
type Service struct {
	log          *slog.Logger
	profiles     Profiles
	payments     Payments
	carts        CartStore
	cache        AddressCache
	geo          address.Geocoder
	advanceDelay time.Duration
	addrOpts     []address.Option

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Service)

// WithAdvanceDelay overrides the auto-advance delay after a first
// successful save, mainly for tests.
func WithAdvanceDelay(d time.Duration) Option {
	return func(s *Service) { s.advanceDelay = d }
}

// WithAddressOptions forwards options to every session's address
// controller.
func WithAddressOptions(opts ...address.Option) Option {
	return func(s *Service) { s.addrOpts = opts }
}

func NewService(log *slog.Logger, profiles Profiles, payments Payments, carts CartStore, cache AddressCache, geo address.Geocoder, opts ...Option) *Service {
	s := &Service{
		log:          log,
		profiles:     profiles,
		payments:     payments,
		carts:        carts,
		cache:        cache,
		geo:          geo,
		advanceDelay: defaultAdvanceDelay,
		sessions:     make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start enters checkout: the cart is frozen, the profile hydrated and the
// per-session address controller created. A profile fetch failure is
// surfaced on the session but does not block entry.
func (s *Service) Start(ctx context.Context, token, userKey string) (View, error) {
	cart, err := s.carts.Cart(ctx, userKey)
	if err != nil {
		return View{}, fmt.Errorf("read cart: %w", err)
	}
	if cart.Empty() {
		return View{}, checkoutdomain.ErrEmptyCart
	}

	profile, profileErr := s.profiles.Load(ctx, token, userKey)

	sess := &session{
		data: checkoutdomain.NewSession(uuid.NewString(), userKey, profile, cart),
	}
	if profileErr != nil {
		s.log.Warn("profile load failed at checkout entry", "user", userKey, "err", profileErr)
		sess.data.LastError = profileErr.Error()
	}

	markerLat, markerLng := profiledomain.PlaceholderLat, profiledomain.PlaceholderLng
	if profiledomain.ChosenLocation(profile.Lat, profile.Lng) {
		markerLat, markerLng = *profile.Lat, *profile.Lng
	}
	addrOpts := append([]address.Option{address.WithMarker(markerLat, markerLng)}, s.addrOpts...)
	sess.addr = address.NewController(s.log, s.geo, func(cm address.Committed) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		lat, lng := cm.Lat, cm.Lng
		sess.data.Profile.Address = cm.DisplayName
		sess.data.Profile.Lat = &lat
		sess.data.Profile.Lng = &lng
	}, addrOpts...)

	s.mu.Lock()
	s.sessions[sess.data.ID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Get returns the current session view.
func (s *Service) Get(sessionID string) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

// Teardown is the navigation-away path: pending timers are cancelled,
// in-flight lookups become stale and the session is dropped.
func (s *Service) Teardown(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	if sess.advance != nil {
		sess.advance.Stop()
		sess.advance = nil
	}
	sess.mu.Unlock()
	sess.addr.Close()
}

// SetAddressQuery feeds a keystroke into the session's debounced search.
func (s *Service) SetAddressQuery(sessionID, query string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.addr.SetQuery(query)
	return nil
}

// Suggestions returns the current candidate list.
func (s *Service) Suggestions(sessionID string) ([]geocoding.Candidate, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.addr.Suggestions(), nil
}

// CommitAddress commits the selected candidate into the profile form. A
// miss is reported on the session, not as an error.
func (s *Service) CommitAddress(sessionID string, index int) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	_, ok := sess.addr.Commit(index)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !ok {
		sess.data.LastError = "address not found"
	} else {
		sess.data.LastError = ""
	}
	return s.viewLocked(sess), nil
}

// MoveMarker handles a map drag or click for the session.
func (s *Service) MoveMarker(sessionID string, lat, lng float64) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.addr.MoveMarker(lat, lng)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

// SaveProfile runs the reconciliation save and, after a written save that
// leaves the profile complete, arms the delayed PROFILE→PAYMENT advance
// so the user sees the acknowledgement first.
func (s *Service) SaveProfile(ctx context.Context, sessionID, token string, form profiledomain.Form) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	held := sess.data.Profile
	userKey := sess.data.UserKey
	sess.mu.Unlock()

	res, saveErr := s.profiles.Save(ctx, token, userKey, held, form)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if saveErr != nil {
		var verr *profiledomain.ValidationError
		if !errors.As(saveErr, &verr) {
			sess.data.LastError = saveErr.Error()
		}
		return s.viewLocked(sess), saveErr
	}

	sess.data.Profile = res.Profile
	sess.data.LastError = ""
	if res.Written {
		sess.data.LastSuccess = "profile saved"
	} else {
		sess.data.LastSuccess = "profile up to date"
	}

	if sess.data.Step == checkoutdomain.StepProfile && res.Written && sess.data.Profile.Complete() {
		if sess.advance != nil {
			sess.advance.Stop()
		}
		id := sess.data.ID
		sess.advance = time.AfterFunc(s.advanceDelay, func() {
			s.autoAdvance(id)
		})
	}
	return s.viewLocked(sess), nil
}

func (s *Service) autoAdvance(sessionID string) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return // torn down before the delay elapsed
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	// the guard is re-checked at the moment of transition
	if err := sess.data.AdvanceToPayment(); err != nil {
		s.log.Warn("auto advance skipped", "session", sessionID, "err", err)
	}
}

// Continue is the explicit transition for an already complete profile.
func (s *Service) Continue(sessionID string) (View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.advance != nil {
		sess.advance.Stop()
		sess.advance = nil
	}
	if err := sess.data.AdvanceToPayment(); err != nil {
		return s.viewLocked(sess), err
	}
	return s.viewLocked(sess), nil
}

// Pay drives the payment handoff for the session. On terminal success the
// cart is cleared; any failure leaves the session retryable with the same
// order.
func (s *Service) Pay(ctx context.Context, sessionID, token string, in PayInput) (PayOutcome, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return PayOutcome{}, err
	}

	sess.mu.Lock()
	if sess.data.Step != checkoutdomain.StepPayment {
		view := s.viewLocked(sess)
		sess.mu.Unlock()
		return PayOutcome{View: view}, checkoutdomain.ErrWrongStep
	}
	if sess.data.Completed {
		view := s.viewLocked(sess)
		sess.mu.Unlock()
		return PayOutcome{View: view}, nil
	}

	userKey := sess.data.UserKey
	profile := sess.data.Profile
	items := make([]paymentdomain.OrderItem, 0, len(sess.data.Cart.Items))
	for _, line := range sess.data.Cart.Items {
		items = append(items, paymentdomain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	amount := sess.data.Cart.TotalCents()
	sess.mu.Unlock()

	location, _ := sess.addr.Committed()
	cached, _, cacheErr := s.cache.Load(ctx, userKey)
	if cacheErr != nil {
		s.log.Warn("address cache read failed during pay", "err", cacheErr)
	}

	result, payErr := s.payments.Pay(ctx, paymentapp.Request{
		SessionID:      sessionID,
		Token:          token,
		Items:          items,
		AmountCents:    amount,
		Currency:       currency,
		Location:       location,
		Address:        profile.Address,
		Reference:      profile.AddressReference,
		StreetNumber:   profile.StreetNumber,
		CachedAddress:  cached.Address,
		DocumentType:   string(profile.DocumentType),
		DocumentNumber: profile.DocumentNumber,
		CardholderName: in.CardholderName,
		Hosted:         in.Hosted,
		Card:           in.Card,
	})

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if payErr != nil {
		sess.data.LastError = payErr.Error()
		return PayOutcome{View: s.viewLocked(sess)}, payErr
	}

	if result.RedirectURL != "" {
		// the hosted page finishes the payment off-site; the cart survives
		// until that confirmation comes back through the backend
		sess.data.LastError = ""
		sess.data.LastSuccess = "redirecting to secure payment"
		return PayOutcome{View: s.viewLocked(sess), RedirectURL: result.RedirectURL}, nil
	}

	if err := s.carts.ClearCart(ctx, userKey); err != nil {
		s.log.Error("cart clear failed after payment", "user", userKey, "err", err)
	}
	sess.data.Cart = checkoutdomain.CartSnapshot{}
	sess.data.Completed = true
	sess.data.LastError = ""
	sess.data.LastSuccess = "payment confirmed"
	return PayOutcome{View: s.viewLocked(sess)}, nil
}

func (s *Service) viewLocked(sess *session) View {
	return View{
		SessionID:       sess.data.ID,
		Step:            sess.data.Step,
		Profile:         sess.data.Profile,
		ProfileComplete: sess.data.Profile.Complete(),
		AddressComplete: sess.data.Profile.HasAddress(),
		Cart:            sess.data.Cart,
		TotalCents:      sess.data.Cart.TotalCents(),
		Completed:       sess.data.Completed,
		LastError:       sess.data.LastError,
		LastSuccess:     sess.data.LastSuccess,
	}
}
