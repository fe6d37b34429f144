package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/pkg/broker"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

type tracedFulfiller struct {
	next   Fulfiller
	tracer trace.Tracer
}

// TraceFulfiller runs each transition inside a "process-order-logic" span.
func TraceFulfiller(next Fulfiller, tracer trace.Tracer) Fulfiller {
	return &tracedFulfiller{next: next, tracer: tracer}
}

func (f *tracedFulfiller) Fulfill(ctx context.Context, o *domain.Order) error {
	return telemetry.Step(ctx, f.tracer, "process-order-logic", func(ctx context.Context) error {
		if err := f.next.Fulfill(ctx, o); err != nil {
			return err
		}
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("order.status", string(o.Status)),
			attribute.String("order.payment_status", string(o.PaymentStatus)),
		)
		return nil
	}, telemetry.OrderID(o.ID))
}

// TraceHandler opens the "process-order" consumer span around h. The span is
// a child of the trace context carried by the message.
func TraceHandler(h broker.Handler, tracer trace.Tracer) broker.Handler {
	return func(ctx context.Context, d broker.Delivery) broker.Decision {
		ctx, span := tracer.Start(ctx, "process-order", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		if req, err := domain.DecodeFulfillmentRequest(d.Body()); err == nil {
			span.SetAttributes(telemetry.OrderID(req.OrderID))
		}

		decision := h(ctx, d)
		span.SetAttributes(attribute.String("messaging.decision", decision.String()))
		if decision == broker.Ack {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, fmt.Sprintf("message settled with %s", decision))
		}
		return decision
	}
}
