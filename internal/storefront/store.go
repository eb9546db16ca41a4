// Package storefront is the Redis-backed per-user cache the browsing
// surface shares with checkout: the cart snapshot written while shopping
// and the last confirmed delivery address. Both are advisory data, read at
// session start and written only after confirmed mutations.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

type Store struct {
	log *slog.Logger
	rdb *redis.Client
}

func NewStore(log *slog.Logger, rdb *redis.Client) *Store {
	return &Store{log: log, rdb: rdb}
}

func cartKey(userKey string) string    { return "storefront:cart:" + userKey }
func addressKey(userKey string) string { return "storefront:address:" + userKey }

// Cart reads the user's cart snapshot. A missing key is an empty cart, not
// an error.
func (s *Store) Cart(ctx context.Context, userKey string) (checkoutdomain.CartSnapshot, error) {
	raw, err := s.rdb.Get(ctx, cartKey(userKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return checkoutdomain.CartSnapshot{}, nil
	}
	if err != nil {
		return checkoutdomain.CartSnapshot{}, fmt.Errorf("cart read: %w", err)
	}
	var cart checkoutdomain.CartSnapshot
	if err := json.Unmarshal(raw, &cart); err != nil {
		return checkoutdomain.CartSnapshot{}, fmt.Errorf("cart decode: %w", err)
	}
	return cart, nil
}

// SaveCart writes the snapshot. The browsing surface calls this on every
// cart mutation; checkout never does.
func (s *Store) SaveCart(ctx context.Context, userKey string, cart checkoutdomain.CartSnapshot) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, cartKey(userKey), raw, 0).Err(); err != nil {
		return fmt.Errorf("cart write: %w", err)
	}
	return nil
}

// ClearCart drops the snapshot after a successful order.
func (s *Store) ClearCart(ctx context.Context, userKey string) error {
	return s.rdb.Del(ctx, cartKey(userKey)).Err()
}

// Load reads the cached address fallback.
func (s *Store) Load(ctx context.Context, userKey string) (profiledomain.CachedAddress, bool, error) {
	raw, err := s.rdb.Get(ctx, addressKey(userKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return profiledomain.CachedAddress{}, false, nil
	}
	if err != nil {
		return profiledomain.CachedAddress{}, false, fmt.Errorf("address cache read: %w", err)
	}
	var a profiledomain.CachedAddress
	if err := json.Unmarshal(raw, &a); err != nil {
		return profiledomain.CachedAddress{}, false, fmt.Errorf("address cache decode: %w", err)
	}
	return a, true, nil
}

// Store mirrors the address fragment after a confirmed profile save.
func (s *Store) Store(ctx context.Context, userKey string, a profiledomain.CachedAddress) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, addressKey(userKey), raw, 0).Err(); err != nil {
		return fmt.Errorf("address cache write: %w", err)
	}
	return nil
}
