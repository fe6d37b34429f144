package ports

import (
	"context"
	"time"

	"github.com/jcmexdev/order-pipeline/internal/domain"
)

// OrderService is what the HTTP layer and the scheduled jobs drive.
type OrderService interface {
	// CreateOrder validates and stores a new order, then enqueues its
	// fulfillment request.
	CreateOrder(ctx context.Context, draft domain.Draft) (*domain.Order, error)

	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// RepublishStale re-enqueues orders still CREATED after olderThan and
	// returns how many were published.
	RepublishStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}
