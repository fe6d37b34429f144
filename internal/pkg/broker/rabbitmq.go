package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

// amqpChannel is the part of *amqp.Channel the work queue uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpDialer func(url string) (amqpConnection, error)

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// RabbitMQ is a Channel over a durable RabbitMQ queue on the default
// exchange.
type RabbitMQ struct {
	url    string
	queue  string
	policy retry.Policy
	logger *slog.Logger
	dial   amqpDialer

	mu   sync.RWMutex
	conn amqpConnection
	ch   amqpChannel
}

func NewRabbitMQ(url, queue string, policy retry.Policy, logger *slog.Logger) *RabbitMQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitMQ{
		url:    url,
		queue:  queue,
		policy: policy,
		logger: logger.With("component", "rabbitmq", "queue", queue),
		dial:   dialAMQP,
	}
}

func (r *RabbitMQ) Connect(ctx context.Context) error {
	err := r.policy.Do(ctx, r.logger, "connect to RabbitMQ", func(context.Context) error {
		conn, err := r.dial(r.url)
		if err != nil {
			return err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("open channel: %w", err)
		}
		if _, err := ch.QueueDeclare(r.queue, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare queue %q: %w", r.queue, err)
		}
		if err := ch.Qos(1, 0, false); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set prefetch: %w", err)
		}

		r.mu.Lock()
		r.conn, r.ch = conn, ch
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	r.logger.InfoContext(ctx, "connected to RabbitMQ")
	return nil
}

func (r *RabbitMQ) channel() amqpChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch
}

// Publish sends body as a persistent message. It does not wait for a broker
// confirmation.
func (r *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	ch := r.channel()
	if ch == nil {
		return ErrChannelNotReady
	}

	headers := amqp.Table{}
	telemetry.Inject(ctx, tableCarrier(headers))

	err := ch.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish to %q: %w", r.queue, err)
	}
	return nil
}

func (r *RabbitMQ) Consume(ctx context.Context, h Handler) error {
	ch := r.channel()
	if ch == nil {
		return ErrChannelNotReady
	}

	msgs, err := ch.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %q: %w", r.queue, err)
	}
	r.logger.InfoContext(ctx, "waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			dispatch(ctx, r.logger, amqpDelivery{m}, h)
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	r.ch, r.conn = nil, nil
	return errors.Join(errs...)
}

type amqpDelivery struct {
	m amqp.Delivery
}

func (d amqpDelivery) Body() []byte { return d.m.Body }

func (d amqpDelivery) Carrier() propagation.TextMapCarrier {
	if d.m.Headers == nil {
		return tableCarrier(amqp.Table{})
	}
	return tableCarrier(d.m.Headers)
}

func (d amqpDelivery) Ack() error { return d.m.Ack(false) }

func (d amqpDelivery) Nack(requeue bool) error { return d.m.Nack(false, requeue) }

// tableCarrier adapts AMQP message headers to the OpenTelemetry propagator.
type tableCarrier amqp.Table

func (c tableCarrier) Get(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (c tableCarrier) Set(key, value string) {
	c[key] = value
}

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
