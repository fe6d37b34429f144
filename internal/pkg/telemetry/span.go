package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// OrderIDKey is the span attribute every order-scoped span carries.
const OrderIDKey = attribute.Key("order.id")

func OrderID(id string) attribute.KeyValue {
	return OrderIDKey.String(id)
}

// Inject writes the trace context of ctx into carrier with the global propagator.
func Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// Extract returns ctx with the remote trace context found in carrier as parent.
func Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Step runs fn inside a child span named name. The span ends exactly once
// on every path; a returned error is recorded and marks the span as failed
// before it reaches the caller.
func Step(ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(ctx); err != nil {
		Fail(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Fail records err on span and sets its status to error.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
