package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

type tracedStore struct {
	next   domain.OrderStore
	tracer trace.Tracer
}

// Trace wraps every store call in a child span tagged with the order id.
func Trace(next domain.OrderStore, tracer trace.Tracer) domain.OrderStore {
	return &tracedStore{next: next, tracer: tracer}
}

func (s *tracedStore) Create(ctx context.Context, o *domain.Order) error {
	return telemetry.Step(ctx, s.tracer, "store.create", func(ctx context.Context) error {
		return s.next.Create(ctx, o)
	}, telemetry.OrderID(o.ID))
}

func (s *tracedStore) Fetch(ctx context.Context, id string) (*domain.Order, error) {
	var o *domain.Order
	err := telemetry.Step(ctx, s.tracer, "store.fetch", func(ctx context.Context) error {
		var err error
		o, err = s.next.Fetch(ctx, id)
		return err
	}, telemetry.OrderID(id))
	return o, err
}

func (s *tracedStore) Save(ctx context.Context, o *domain.Order) error {
	return telemetry.Step(ctx, s.tracer, "store.save", func(ctx context.Context) error {
		return s.next.Save(ctx, o)
	}, telemetry.OrderID(o.ID), attribute.String("order.status", string(o.Status)))
}

func (s *tracedStore) ListByStatus(ctx context.Context, status domain.Status, before time.Time, limit int) ([]*domain.Order, error) {
	var out []*domain.Order
	err := telemetry.Step(ctx, s.tracer, "store.list", func(ctx context.Context) error {
		var err error
		out, err = s.next.ListByStatus(ctx, status, before, limit)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("orders.count", len(out)))
		return err
	}, attribute.String("order.status", string(status)), attribute.Int("limit", limit))
	return out, err
}
