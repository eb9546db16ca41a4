package application

import (
	"context"

	"github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// RemoteAPI is the backend profile contract: one fetch, one upsert.
type RemoteAPI interface {
	Fetch(ctx context.Context, token string) (domain.Profile, error)
	Update(ctx context.Context, token string, p domain.Profile) error
}

// AddressCache is the storefront fallback cache for address fields. It is
// advisory only and always superseded by a successful remote fetch.
type AddressCache interface {
	Load(ctx context.Context, userKey string) (domain.CachedAddress, bool, error)
	Store(ctx context.Context, userKey string, a domain.CachedAddress) error
}
