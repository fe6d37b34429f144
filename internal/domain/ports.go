package domain

import (
	"context"
	"time"
)

// OrderStore is the record of truth for orders. Writes are last-write-wins;
// callers rely on the worker's idempotency gate rather than store locking.
type OrderStore interface {
	// Create inserts a new order. A duplicate id yields ErrConflict.
	Create(ctx context.Context, o *Order) error

	// Fetch returns the order or a *NotFoundError.
	Fetch(ctx context.Context, id string) (*Order, error)

	// Save overwrites an existing order. An unknown id yields ErrConflict.
	Save(ctx context.Context, o *Order) error

	// ListByStatus returns up to limit orders in status created before the
	// given instant, oldest first. A limit of zero or less means no limit.
	ListByStatus(ctx context.Context, status Status, before time.Time, limit int) ([]*Order, error)
}

// RequestPublisher hands a fulfillment request to the work queue.
type RequestPublisher interface {
	Publish(ctx context.Context, req FulfillmentRequest) error
}
