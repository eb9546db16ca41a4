package application

import (
	"context"

	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	paymentapp "github.com/FreddRva/posoqo-checkout/internal/payment/application"
	profileapp "github.com/FreddRva/posoqo-checkout/internal/profile/application"
	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// Profiles is the reconciliation surface the step machine drives.
type Profiles interface {
	Load(ctx context.Context, token, userKey string) (profiledomain.Profile, error)
	Save(ctx context.Context, token, userKey string, held profiledomain.Profile, form profiledomain.Form) (profileapp.SaveResult, error)
}

// Payments is the handoff surface reached from the payment step.
type Payments interface {
	Pay(ctx context.Context, req paymentapp.Request) (paymentapp.Result, error)
}

// CartStore reads the frozen cart at entry and clears it after success.
type CartStore interface {
	Cart(ctx context.Context, userKey string) (checkoutdomain.CartSnapshot, error)
	ClearCart(ctx context.Context, userKey string) error
}

// AddressCache exposes the cached address for the order location fallback.
type AddressCache interface {
	Load(ctx context.Context, userKey string) (profiledomain.CachedAddress, bool, error)
}
