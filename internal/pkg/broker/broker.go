// Package broker is the durable work queue between the order API and the
// fulfillment worker. A Channel is owned by one service, connected once at
// startup and passed to whatever publishes or consumes.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/propagation"

	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

var (
	// ErrChannelNotReady is returned by Publish and Consume before Connect
	// succeeded.
	ErrChannelNotReady = errors.New("broker: channel not initialized")

	// ErrChannelClosed is returned by Consume when the broker side goes away.
	ErrChannelClosed = errors.New("broker: channel closed")
)

// Decision is what a handler wants done with a delivery.
type Decision int

const (
	// Ack removes the message: it was processed or intentionally skipped.
	Ack Decision = iota + 1
	// Requeue returns the message for redelivery after a transient failure.
	Requeue
	// Drop removes the message because it can never be processed.
	Drop
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "nack-requeue"
	case Drop:
		return "nack-drop"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Delivery is one message handed to a Handler.
type Delivery interface {
	Body() []byte
	// Carrier exposes the message headers for trace context extraction.
	Carrier() propagation.TextMapCarrier
	Ack() error
	Nack(requeue bool) error
}

// Handler processes one delivery. ctx already carries the trace context
// extracted from the message headers.
type Handler func(ctx context.Context, d Delivery) Decision

// Publisher sends a raw message body to the work queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Channel is a connection to the work queue.
type Channel interface {
	Publisher

	// Connect dials the broker and makes sure the durable queue exists. It
	// retries according to the channel's policy and fails with an error
	// matching retry.ErrExhausted when the budget is spent.
	Connect(ctx context.Context) error

	// Consume delivers messages one at a time to h and settles each one
	// exactly once with the decision h returns. It blocks until ctx is done
	// (returning nil) or the channel fails.
	Consume(ctx context.Context, h Handler) error

	Close() error
}

// dispatch runs h for one delivery and settles it. A panicking handler is
// treated as a transient failure.
func dispatch(ctx context.Context, logger *slog.Logger, d Delivery, h Handler) {
	ctx = telemetry.Extract(ctx, d.Carrier())

	decision := invoke(ctx, logger, d, h)
	if err := settle(d, decision); err != nil {
		logger.ErrorContext(ctx, "failed to settle delivery", "decision", decision.String(), "error", err)
	}
}

func invoke(ctx context.Context, logger *slog.Logger, d Delivery, h Handler) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "handler panicked, requeueing message", "panic", fmt.Sprint(r))
			decision = Requeue
		}
	}()
	return h(ctx, d)
}

func settle(d Delivery, decision Decision) error {
	switch decision {
	case Ack:
		return d.Ack()
	case Drop:
		return d.Nack(false)
	default:
		return d.Nack(true)
	}
}
