package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claims hands out short-lived exclusive claims backed by Redis SetNX.
// The payment flow takes a claim per checkout session before creating an
// order, so a double-submitted pay request cannot create two orders while
// the durable attempt row is still being written.
type Claims struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewClaims(rdb *redis.Client, ttl time.Duration) *Claims {
	return &Claims{rdb: rdb, ttl: ttl}
}

func (c *Claims) Key(sessionID string) string {
	return fmt.Sprintf("checkout:order:%s", sessionID)
}

// Acquire returns true when the claim was taken by this caller. The claim
// expires on its own after the TTL if never released.
func (c *Claims) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the claim so a failed attempt can be retried immediately.
func (c *Claims) Release(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
