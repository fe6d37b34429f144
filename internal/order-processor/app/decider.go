package app

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jcmexdev/order-pipeline/internal/domain"
)

// Decider chooses the fulfillment outcome for an order in PROCESSING.
type Decider interface {
	Decide(ctx context.Context, o *domain.Order) (domain.Outcome, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, o *domain.Order) (domain.Outcome, error)

func (f DeciderFunc) Decide(ctx context.Context, o *domain.Order) (domain.Outcome, error) {
	return f(ctx, o)
}

// FixedDecider always returns outcome.
func FixedDecider(outcome domain.Outcome) Decider {
	return DeciderFunc(func(context.Context, *domain.Order) (domain.Outcome, error) {
		return outcome, nil
	})
}

// RandomDecider simulates a fulfillment backend: it waits Latency and ships
// with probability ShipRate.
type RandomDecider struct {
	ShipRate float64
	Latency  time.Duration

	// roll returns a value in [0,1); nil uses math/rand.
	roll func() float64
}

func NewRandomDecider(shipRate float64, latency time.Duration) *RandomDecider {
	return &RandomDecider{ShipRate: shipRate, Latency: latency}
}

func (d *RandomDecider) Decide(ctx context.Context, _ *domain.Order) (domain.Outcome, error) {
	if d.Latency > 0 {
		t := time.NewTimer(d.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	roll := rand.Float64
	if d.roll != nil {
		roll = d.roll
	}
	if roll() < d.ShipRate {
		return domain.OutcomeShipped, nil
	}
	return domain.OutcomeCancelled, nil
}
