package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	rec := tracetest.NewSpanRecorder()
	return rec, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

func TestStep_SuccessEndsSpanWithOk(t *testing.T) {
	rec, tp := newRecorder()
	tracer := tp.Tracer("test")

	err := Step(context.Background(), tracer, "fetch-order", func(context.Context) error { return nil }, OrderID("ord-1"))
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "fetch-order", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), OrderID("ord-1"))
}

func TestStep_ErrorMarksSpanAndPropagates(t *testing.T) {
	rec, tp := newRecorder()
	boom := errors.New("write timeout")

	err := Step(context.Background(), tp.Tracer("test"), "save-order", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "write timeout", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestStep_ChildOfCallerSpan(t *testing.T) {
	rec, tp := newRecorder()
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "process-order")
	_ = Step(ctx, tracer, "child", func(context.Context) error { return nil })
	parent.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	InstallPropagator()
	_, tp := newRecorder()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish-order")
	defer span.End()

	carrier := propagation.MapCarrier{}
	Inject(ctx, carrier)
	require.NotEmpty(t, carrier.Get("traceparent"))

	remote := Extract(context.Background(), carrier)
	sc := trace.SpanContextFromContext(remote)
	assert.Equal(t, span.SpanContext().TraceID(), sc.TraceID())
	assert.True(t, sc.IsRemote())
}

func TestContextHandler_AddsTraceIDs(t *testing.T) {
	_, tp := newRecorder()
	ctx, span := tp.Tracer("test").Start(context.Background(), "get-order")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, "order-api", "test").With("component", "http")
	logger.InfoContext(ctx, "order fetched")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])
	assert.Equal(t, "order-api", rec["service"])
	assert.Equal(t, "http", rec["component"])
}

func TestSetupTracer_WithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracer(context.Background(), TracerConfig{ServiceName: "order-api"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "tempo:4317", stripScheme("http://tempo:4317"))
	assert.Equal(t, "tempo:4317", stripScheme("https://tempo:4317"))
	assert.Equal(t, "tempo:4317", stripScheme("tempo:4317"))
}
