package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	orderapi "github.com/jcmexdev/order-pipeline/internal/order-api/app"
	"github.com/jcmexdev/order-pipeline/internal/order-processor/app"
	"github.com/jcmexdev/order-pipeline/internal/pkg/broker"
	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store/memory"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

func TestPipeline_CreatedOrderShipsUnderOneTrace(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	srv.Start()
	require.True(t, srv.ReadyForConnections(5*time.Second))
	t.Cleanup(srv.Shutdown)

	telemetry.InstallPropagator()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.Policy{MaxAttempts: 1}

	orders := memory.New()

	apiTracer := tp.Tracer("order-api")
	producer := broker.NewJetStream(srv.ClientURL(), "order_queue", policy, logger)
	require.NoError(t, producer.Connect(t.Context()))
	t.Cleanup(func() { _ = producer.Close() })
	svc := orderapi.TraceService(orderapi.NewService(
		store.Trace(orders, apiTracer),
		orderapi.TracePublisher(broker.NewRequestPublisher(producer), apiTracer, "order_queue"),
		logger,
	), apiTracer)

	workerTracer := tp.Tracer("order-processor")
	consumer := broker.NewJetStream(srv.ClientURL(), "order_queue", policy, logger)
	require.NoError(t, consumer.Connect(t.Context()))
	t.Cleanup(func() { _ = consumer.Close() })
	worker := app.NewWorker(
		store.Trace(orders, workerTracer),
		app.TraceFulfiller(app.NewFulfillment(app.FixedDecider(domain.OutcomeShipped)), workerTracer),
		nil, logger,
	)

	order, err := svc.CreateOrder(t.Context(), domain.Draft{
		CustomerID:    "cust-1",
		CustomerEmail: "ana@example.com",
		Items:         []domain.Item{{ProductID: "p-1", Name: "Keyboard", Quantity: 3, Price: 4}},
		ShippingAddress: domain.Address{
			Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US",
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	handled := make(chan broker.Decision, 1)
	traced := app.TraceHandler(worker.Handle, workerTracer)
	errc := make(chan error, 1)
	go func() {
		errc <- consumer.Consume(ctx, func(ctx context.Context, d broker.Delivery) broker.Decision {
			decision := traced(ctx, d)
			select {
			case handled <- decision:
			default:
			}
			return decision
		})
	}()

	select {
	case decision := <-handled:
		assert.Equal(t, broker.Ack, decision)
	case <-ctx.Done():
		t.Fatal("fulfillment request was never delivered")
	}
	cancel()
	require.NoError(t, <-errc)

	got, err := orders.Fetch(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 12.0, got.TotalAmount)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range rec.Ended() {
		spans[s.Name()] = s
	}
	for _, name := range []string{"create-order", "store.create", "publish-order", "process-order", "store.fetch", "process-order-logic", "store.save"} {
		require.Contains(t, spans, name)
		assert.Equal(t, spans["create-order"].SpanContext().TraceID(), spans[name].SpanContext().TraceID(), name)
	}
	assert.Equal(t, spans["publish-order"].SpanContext().SpanID(), spans["process-order"].Parent().SpanID())
}
