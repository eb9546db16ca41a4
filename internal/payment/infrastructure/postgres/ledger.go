// Package postgres persists the payment attempt ledger and the outbox
// rows that announce checkout lifecycle events. Both are written in one
// transaction so an event can never exist without its attempt.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FreddRva/posoqo-checkout/internal/payment/domain"
	"github.com/FreddRva/posoqo-checkout/pkg/outbox"
)

// Schema holds the DDL for the service's two tables. The migrator command
// applies it at deploy time.
const Schema = `
CREATE TABLE IF NOT EXISTS checkout_attempts (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL UNIQUE,
	order_id     TEXT NOT NULL,
	amount_cents BIGINT NOT NULL,
	currency     TEXT NOT NULL,
	status       TEXT NOT NULL,
	detail       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        BYTEA NOT NULL,
	headers        JSONB,
	traceparent    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending';
`

type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

// EnsureSchema applies the DDL. Idempotent.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, Schema)
	return err
}

func (l *Ledger) Find(ctx context.Context, sessionID string) (domain.Attempt, bool, error) {
	var a domain.Attempt
	err := l.pool.QueryRow(ctx, `
		SELECT id, session_id, order_id, amount_cents, currency, status, detail, created_at, updated_at
		FROM checkout_attempts WHERE session_id=$1`, sessionID).
		Scan(&a.ID, &a.SessionID, &a.OrderID, &a.AmountCents, &a.Currency, &a.Status, &a.Detail, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("attempt find: %w", err)
	}
	return a, true, nil
}

// Begin writes the attempt row and its outbox event transactionally.
func (l *Ledger) Begin(ctx context.Context, a domain.Attempt, eventType string, payload []byte, traceparent string) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO checkout_attempts (id, session_id, order_id, amount_cents, currency, status, detail, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.SessionID, a.OrderID, a.AmountCents, a.Currency, a.Status, a.Detail, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("attempt insert: %w", err)
	}

	if err := insertOutbox(ctx, tx, a.SessionID, eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkResult updates the attempt's status and records the outcome event in
// the same transaction.
func (l *Ledger) MarkResult(ctx context.Context, sessionID string, status domain.Status, detail, eventType string, payload []byte, traceparent string) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE checkout_attempts SET status=$2, detail=$3, updated_at=$4 WHERE session_id=$1`,
		sessionID, status, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("attempt update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("attempt update: no row for session %s", sessionID)
	}

	if err := insertOutbox(ctx, tx, sessionID, eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"checkout", aggregateID, eventType, payload, traceparent)
	if err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return nil
}

// OutboxStore serves the relay's view of the outbox table.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
		FROM outbox
		WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &e.Traceparent, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	_, err = tx.Exec(ctx, `
		UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval
		WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("outbox mark sent: no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`,
		id, errMsg)
	return err
}
