package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

// JetStream is a Channel over a file-backed NATS JetStream work-queue
// stream. The queue name is the subject; the stream is its upper-cased form.
type JetStream struct {
	url    string
	queue  string
	policy retry.Policy
	logger *slog.Logger

	mu     sync.RWMutex
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

func NewJetStream(url, queue string, policy retry.Policy, logger *slog.Logger) *JetStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &JetStream{
		url:    url,
		queue:  queue,
		policy: policy,
		logger: logger.With("component", "jetstream", "queue", queue),
	}
}

func (j *JetStream) streamName() string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(j.queue))
}

func (j *JetStream) consumerName() string {
	return j.streamName() + "_WORKER"
}

func (j *JetStream) Connect(ctx context.Context) error {
	err := j.policy.Do(ctx, j.logger, "connect to NATS JetStream", func(ctx context.Context) error {
		nc, err := nats.Connect(j.url, nats.Name("order-pipeline"))
		if err != nil {
			return err
		}
		js, err := jetstream.New(nc, jetstream.WithPublishAsyncErrHandler(j.publishFailed))
		if err != nil {
			nc.Close()
			return err
		}
		stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      j.streamName(),
			Subjects:  []string{j.queue},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.WorkQueuePolicy,
		})
		if err != nil {
			nc.Close()
			return fmt.Errorf("ensure stream %s: %w", j.streamName(), err)
		}

		j.mu.Lock()
		j.nc, j.js, j.stream = nc, js, stream
		j.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	j.logger.InfoContext(ctx, "connected to NATS JetStream", "stream", j.streamName())
	return nil
}

// publishFailed is called for every async publish the server rejects or
// never acknowledges.
func (j *JetStream) publishFailed(_ jetstream.JetStream, msg *nats.Msg, err error) {
	ctx := telemetry.Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	j.logger.ErrorContext(ctx, "publish not acknowledged",
		"subject", msg.Subject,
		"bytes", len(msg.Data),
		"error", err,
	)
}

func (j *JetStream) handles() (jetstream.JetStream, jetstream.Stream) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.js, j.stream
}

// Publish stores body in the stream without waiting for the pub-ack.
func (j *JetStream) Publish(ctx context.Context, body []byte) error {
	js, _ := j.handles()
	if js == nil {
		return ErrChannelNotReady
	}

	msg := nats.NewMsg(j.queue)
	msg.Data = body
	msg.Header.Set("Content-Type", "application/json")
	telemetry.Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if _, err := js.PublishMsgAsync(msg); err != nil {
		return fmt.Errorf("broker: publish to %q: %w", j.queue, err)
	}
	return nil
}

func (j *JetStream) Consume(ctx context.Context, h Handler) error {
	_, stream := j.handles()
	if stream == nil {
		return ErrChannelNotReady
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       j.consumerName(),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
		FilterSubject: j.queue,
	})
	if err != nil {
		return fmt.Errorf("broker: ensure consumer %s: %w", j.consumerName(), err)
	}

	iter, err := cons.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("broker: consume %q: %w", j.queue, err)
	}
	defer iter.Stop()
	stop := context.AfterFunc(ctx, iter.Stop)
	defer stop()

	j.logger.InfoContext(ctx, "waiting for messages")
	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				return ErrChannelClosed
			}
			return fmt.Errorf("broker: next message: %w", err)
		}
		dispatch(ctx, j.logger, jsDelivery{msg}, h)
	}
}

// Close waits briefly for outstanding async publishes, then drains the
// connection.
func (j *JetStream) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.nc == nil {
		return nil
	}
	if j.js != nil {
		select {
		case <-j.js.PublishAsyncComplete():
		case <-time.After(5 * time.Second):
			j.logger.Warn("closing with unacknowledged publishes", "pending", j.js.PublishAsyncPending())
		}
	}
	err := j.nc.Drain()
	j.nc, j.js, j.stream = nil, nil, nil
	return err
}

type jsDelivery struct {
	m jetstream.Msg
}

func (d jsDelivery) Body() []byte { return d.m.Data() }

func (d jsDelivery) Carrier() propagation.TextMapCarrier {
	return propagation.HeaderCarrier(d.m.Headers())
}

func (d jsDelivery) Ack() error { return d.m.Ack() }

func (d jsDelivery) Nack(requeue bool) error {
	if requeue {
		return d.m.Nak()
	}
	return d.m.Term()
}
