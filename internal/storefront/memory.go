package storefront

import (
	"context"
	"sync"

	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	profiledomain "github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// Memory is the in-process variant of the storefront cache used by unit
// tests and local runs without Redis.
type Memory struct {
	mu    sync.RWMutex
	carts map[string]checkoutdomain.CartSnapshot
	addrs map[string]profiledomain.CachedAddress
}

func NewMemory() *Memory {
	return &Memory{
		carts: make(map[string]checkoutdomain.CartSnapshot),
		addrs: make(map[string]profiledomain.CachedAddress),
	}
}

func (m *Memory) Cart(_ context.Context, userKey string) (checkoutdomain.CartSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.carts[userKey], nil
}

// SeedCart is a test hook standing in for the browsing surface.
func (m *Memory) SeedCart(userKey string, cart checkoutdomain.CartSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userKey] = cart
}

func (m *Memory) ClearCart(_ context.Context, userKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userKey)
	return nil
}

func (m *Memory) Load(_ context.Context, userKey string) (profiledomain.CachedAddress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.addrs[userKey]
	return a, ok, nil
}

func (m *Memory) Store(_ context.Context, userKey string, a profiledomain.CachedAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs[userKey] = a
	return nil
}
