// Package domain models the checkout session: the two-step flow, the cart
// snapshot frozen at entry and the profile the session owns for its
// duration.
package domain

import (
	"errors"

	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// Step is the explicit checkout state. There are exactly two: the payment
// step is terminal on the success path and is never left except by a full
// session restart.
type Step string

const (
	StepProfile Step = "PROFILE"
	StepPayment Step = "PAYMENT"
)

var (
	ErrProfileIncomplete = errors.New("profile incomplete")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrWrongStep         = errors.New("operation not allowed in current step")
)

// CartItem is one frozen line of the cart.
type CartItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	ImageRef       string `json:"image_ref,omitempty"`
}

// CartSnapshot is the cart as read once at checkout entry. It is immutable
// for the life of the session apart from being cleared after a successful
// payment.
type CartSnapshot struct {
	Items []CartItem `json:"items"`
}

func (c CartSnapshot) Empty() bool {
	return len(c.Items) == 0
}

// TotalCents recomputes the derived total from unit prices and quantities.
func (c CartSnapshot) TotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// Session is the checkout session state. It holds the only mutable
// reference to the profile and cart while checkout runs.
type Session struct {
	ID          string
	UserKey     string
	Step        Step
	Profile     profiledomain.Profile
	Cart        CartSnapshot
	Completed   bool
	LastError   string
	LastSuccess string
}

// NewSession enters checkout at the profile step. The cart must already be
// non-empty; the caller checks that before constructing the session.
func NewSession(id, userKey string, profile profiledomain.Profile, cart CartSnapshot) Session {
	return Session{
		ID:      id,
		UserKey: userKey,
		Step:    StepProfile,
		Profile: profile,
		Cart:    cart,
	}
}

// AdvanceToPayment is the only forward transition. It is guarded on
// identity completeness at the moment of the transition; address state is
// informational and never part of the guard.
func (s *Session) AdvanceToPayment() error {
	if s.Step == StepPayment {
		return nil
	}
	if !s.Profile.Complete() {
		return ErrProfileIncomplete
	}
	s.Step = StepPayment
	return nil
}
