package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
)

// Open returns an unconnected Channel for rawURL: amqp:// and amqps:// use
// RabbitMQ, nats:// uses JetStream.
func Open(rawURL, queue string, policy retry.Policy, logger *slog.Logger) (Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("broker: parse url: %w", err)
	}
	switch u.Scheme {
	case "amqp", "amqps":
		return NewRabbitMQ(rawURL, queue, policy, logger), nil
	case "nats", "tls":
		return NewJetStream(rawURL, queue, policy, logger), nil
	default:
		return nil, fmt.Errorf("broker: unsupported scheme %q", u.Scheme)
	}
}

// RequestPublisher encodes fulfillment requests as JSON onto a Publisher.
type RequestPublisher struct {
	pub Publisher
}

func NewRequestPublisher(pub Publisher) *RequestPublisher {
	return &RequestPublisher{pub: pub}
}

func (p *RequestPublisher) Publish(ctx context.Context, req domain.FulfillmentRequest) error {
	body, err := req.Encode()
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, body)
}

var _ domain.RequestPublisher = (*RequestPublisher)(nil)
