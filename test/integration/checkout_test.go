package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutdomain "github.com/FreddRva/posoqo-checkout/internal/checkout/domain"
	paymentdomain "github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	paymentpg "github.com/FreddRva/posoqo-checkout/internal/payment/infrastructure/postgres"
	"github.com/FreddRva/posoqo-checkout/internal/storefront"
	"github.com/FreddRva/posoqo-checkout/pkg/idempotency"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackingServices(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires docker")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	t.Run("attempt ledger", func(t *testing.T) {
		pool, err := pgxpool.New(ctx, env.PGURL)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		ledger := paymentpg.NewLedger(testLogger(), pool)
		require.NoError(t, ledger.EnsureSchema(ctx))

		_, found, err := ledger.Find(ctx, "sess-1")
		require.NoError(t, err)
		require.False(t, found)

		attempt := paymentdomain.Attempt{
			ID:          "att-1",
			SessionID:   "sess-1",
			OrderID:     "ord-1",
			AmountCents: 4500,
			Currency:    "pen",
			Status:      paymentdomain.StatusOrderCreated,
		}
		require.NoError(t, ledger.Begin(ctx, attempt, "CheckoutOrderPlaced", []byte(`{"order_id":"ord-1"}`), ""))

		got, found, err := ledger.Find(ctx, "sess-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "ord-1", got.OrderID)
		assert.Equal(t, paymentdomain.StatusOrderCreated, got.Status)

		// a second Begin for the same session must collide, not duplicate
		require.Error(t, ledger.Begin(ctx, attempt, "CheckoutOrderPlaced", []byte(`{}`), ""))

		require.NoError(t, ledger.MarkResult(ctx, "sess-1", paymentdomain.StatusAuthorized, "",
			"CheckoutPaymentAuthorized", []byte(`{"order_id":"ord-1"}`), ""))

		got, _, err = ledger.Find(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.StatusAuthorized, got.Status)

		outboxStore := paymentpg.NewOutboxStore(testLogger(), pool)
		events, err := outboxStore.LockBatch(ctx, "relay-test", 10, 5*time.Second)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "CheckoutOrderPlaced", events[0].Type)
		assert.Equal(t, "CheckoutPaymentAuthorized", events[1].Type)

		// a locked batch is invisible to other relays until its lease expires
		other, err := outboxStore.LockBatch(ctx, "relay-other", 10, 5*time.Second)
		require.NoError(t, err)
		assert.Empty(t, other)

		ids := []int64{events[0].ID, events[1].ID}
		require.NoError(t, outboxStore.MarkSent(ctx, ids))
		events, err = outboxStore.LockBatch(ctx, "relay-test", 10, 5*time.Second)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("storefront cache", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		t.Cleanup(func() { _ = rdb.Close() })

		store := storefront.NewStore(testLogger(), rdb)

		cart, err := store.Cart(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, cart.Empty())

		seeded := checkoutdomain.CartSnapshot{Items: []checkoutdomain.CartItem{
			{ProductID: "posoqo-ipa", Name: "POSOQO IPA", UnitPriceCents: 1500, Quantity: 2},
		}}
		require.NoError(t, store.SaveCart(ctx, "user-1", seeded))

		cart, err = store.Cart(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, int64(3000), cart.TotalCents())

		require.NoError(t, store.ClearCart(ctx, "user-1"))
		cart, err = store.Cart(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, cart.Empty())
	})

	t.Run("payment claims", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		t.Cleanup(func() { _ = rdb.Close() })

		claims := idempotency.NewClaims(rdb, time.Minute)
		key := claims.Key("sess-claims")

		ok, err := claims.Acquire(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = claims.Acquire(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, claims.Release(ctx, key))
		ok, err = claims.Acquire(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
