package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/order-api/core/ports"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

type tracedService struct {
	next   ports.OrderService
	tracer trace.Tracer
}

// TraceService wraps each use case in its own span.
func TraceService(next ports.OrderService, tracer trace.Tracer) ports.OrderService {
	return &tracedService{next: next, tracer: tracer}
}

func (s *tracedService) CreateOrder(ctx context.Context, draft domain.Draft) (*domain.Order, error) {
	var order *domain.Order
	err := telemetry.Step(ctx, s.tracer, "create-order", func(ctx context.Context) error {
		var err error
		order, err = s.next.CreateOrder(ctx, draft)
		if order != nil {
			trace.SpanFromContext(ctx).SetAttributes(
				telemetry.OrderID(order.ID),
				attribute.Float64("order.total_amount", order.TotalAmount),
			)
		}
		return err
	}, attribute.String("customer.id", draft.CustomerID), attribute.Int("order.items", len(draft.Items)))
	return order, err
}

func (s *tracedService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := telemetry.Step(ctx, s.tracer, "get-order", func(ctx context.Context) error {
		var err error
		order, err = s.next.GetOrder(ctx, id)
		return err
	}, telemetry.OrderID(id))
	return order, err
}

func (s *tracedService) RepublishStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	var n int
	err := telemetry.Step(ctx, s.tracer, "republish-stale-orders", func(ctx context.Context) error {
		var err error
		n, err = s.next.RepublishStale(ctx, olderThan, limit)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("orders.republished", n))
		return err
	}, attribute.String("older_than", olderThan.String()))
	return n, err
}

type tracedPublisher struct {
	next   domain.RequestPublisher
	tracer trace.Tracer
	queue  string
}

// TracePublisher opens a producer span around each publish so the trace
// context injected into the message points at it.
func TracePublisher(next domain.RequestPublisher, tracer trace.Tracer, queue string) domain.RequestPublisher {
	return &tracedPublisher{next: next, tracer: tracer, queue: queue}
}

func (p *tracedPublisher) Publish(ctx context.Context, req domain.FulfillmentRequest) error {
	ctx, span := p.tracer.Start(ctx, "publish-order",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			telemetry.OrderID(req.OrderID),
			attribute.String("messaging.destination.name", p.queue),
		),
	)
	defer span.End()

	if err := p.next.Publish(ctx, req); err != nil {
		telemetry.Fail(span, err)
		return err
	}
	return nil
}
