// Package app holds the order creation use cases.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/order-api/core/ports"
)

// OrderCache is a read-through cache for orders that will not change again
// on this side of the pipeline.
type OrderCache interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Put(ctx context.Context, o *domain.Order) error
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves settled orders from c.
func WithCache(c OrderCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock replaces time.Now and the id generator; tests use it.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Service) {
		s.now = now
		s.newID = newID
	}
}

type Service struct {
	store     domain.OrderStore
	publisher domain.RequestPublisher
	cache     OrderCache // nil-safe: every read goes to the store if nil
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(store domain.OrderStore, publisher domain.RequestPublisher, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "order_service"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateOrder(ctx context.Context, draft domain.Draft) (*domain.Order, error) {
	order, err := domain.NewOrder(s.newID(), draft, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("store order %s: %w", order.ID, err)
	}

	if err := s.publisher.Publish(ctx, domain.FulfillmentRequest{OrderID: order.ID}); err != nil {
		// The order stays CREATED; the republish job picks it up later.
		return nil, fmt.Errorf("publish fulfillment request for order %s: %w", order.ID, err)
	}

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"total_amount", order.TotalAmount,
	)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "order cache read failed", "order_id", id, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	order, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && order.Status != domain.StatusCreated {
		if err := s.cache.Put(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "order cache write failed", "order_id", id, "error", err)
		}
	}
	return order, nil
}

// RepublishStale is safe to run at any time: the worker acknowledges
// requests for orders that already left CREATED without touching them.
func (s *Service) RepublishStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.store.ListByStatus(ctx, domain.StatusCreated, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	var (
		published int
		errs      []error
	)
	for _, o := range stale {
		if err := s.publisher.Publish(ctx, domain.FulfillmentRequest{OrderID: o.ID}); err != nil {
			errs = append(errs, fmt.Errorf("republish order %s: %w", o.ID, err))
			continue
		}
		published++
	}

	if published > 0 {
		s.logger.InfoContext(ctx, "republished stale orders", "count", published)
	}
	return published, errors.Join(errs...)
}

var _ ports.OrderService = (*Service)(nil)
