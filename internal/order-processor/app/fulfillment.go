package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jcmexdev/order-pipeline/internal/domain"
)

// Fulfiller applies the fulfillment transition to a CREATED order in memory.
// It does not persist anything.
type Fulfiller interface {
	Fulfill(ctx context.Context, o *domain.Order) error
}

// Fulfillment moves an order CREATED -> PROCESSING -> outcome.
type Fulfillment struct {
	decider Decider
	now     func() time.Time
}

func NewFulfillment(decider Decider) *Fulfillment {
	return &Fulfillment{decider: decider, now: time.Now}
}

func (f *Fulfillment) Fulfill(ctx context.Context, o *domain.Order) error {
	if err := o.StartProcessing(f.now()); err != nil {
		return err
	}

	outcome, err := f.decider.Decide(ctx, o)
	if err != nil {
		return fmt.Errorf("decide fulfillment for order %s: %w", o.ID, err)
	}

	return o.Complete(outcome, f.now())
}
