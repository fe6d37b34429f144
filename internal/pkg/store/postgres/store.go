// Package postgres stores orders as jsonb documents. The status and
// timestamps are duplicated into columns so the republisher can find stale
// orders without scanning payloads.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS orders (
  id         text PRIMARY KEY,
  status     text NOT NULL,
  payload    jsonb NOT NULL,
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders (status, created_at);`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open creates a pool for url, waits for the database with policy and
// ensures the schema.
func Open(ctx context.Context, url string, policy retry.Policy, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := policy.Do(ctx, logger, "connect to Postgres", pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// EnsureSchema creates the orders table and its index if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Create(ctx context.Context, o *domain.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("postgres: encode order %s: %w", o.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO orders (id, status, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, string(o.Status), payload, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, o.ID)
		}
		return fmt.Errorf("postgres: insert order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, id string) (*domain.Order, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM orders WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch order %s: %w", id, err)
	}
	return decode(payload)
}

// Save overwrites the stored document. Last write wins.
func (s *Store) Save(ctx context.Context, o *domain.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("postgres: encode order %s: %w", o.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2, payload = $3, updated_at = $4 WHERE id = $1`,
		o.ID, string(o.Status), payload, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s does not exist", domain.ErrConflict, o.ID)
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.Status, before time.Time, limit int) ([]*domain.Order, error) {
	// LIMIT NULL is LIMIT ALL.
	var rowLimit *int
	if limit > 0 {
		rowLimit = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`,
		string(status), before, rowLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s orders: %w", status, err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		o, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func decode(payload []byte) (*domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("postgres: decode order: %w", err)
	}
	return &o, nil
}

var _ domain.OrderStore = (*Store)(nil)
