// Package integration spins up the real backing services for tests that
// exercise the Postgres ledger, the Redis storefront cache and the Kafka
// outbox relay together.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type Env struct {
	PG        *postgres.PostgresContainer
	Redis     *tcredis.RedisContainer
	Kafka     *kafka.KafkaContainer
	PGURL     string
	RedisAddr string
	KAddr     []string
	Cancel    context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		return nil, err
	}

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		cancel()
		return nil, err
	}

	redisURL, err := redisC.ConnectionString(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("checkout-test-cluster"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	kafkaAddress, err := kafkaC.Brokers(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Env{
		PG:        pgC,
		Redis:     redisC,
		Kafka:     kafkaC,
		PGURL:     pgURL,
		RedisAddr: trimScheme(redisURL),
		KAddr:     kafkaAddress,
		Cancel:    cancel,
	}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	_ = e.Kafka.Terminate(ctx)
	_ = e.Redis.Terminate(ctx)
	_ = e.PG.Terminate(ctx)
}

func trimScheme(url string) string {
	const prefix = "redis://"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return url
}
