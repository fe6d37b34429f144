// Package app is the fulfillment worker: it turns a fulfillment request
// into exactly one state change of the order, however often the request is
// delivered.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/order-processor/auditlog"
	"github.com/jcmexdev/order-pipeline/internal/pkg/broker"
)

// Worker handles fulfillment request deliveries.
type Worker struct {
	store     domain.OrderStore
	fulfiller Fulfiller
	journal   auditlog.Repository // nil-safe: nothing is journaled if nil
	logger    *slog.Logger
}

func NewWorker(store domain.OrderStore, fulfiller Fulfiller, journal auditlog.Repository, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     store,
		fulfiller: fulfiller,
		journal:   journal,
		logger:    logger.With("component", "fulfillment_worker"),
	}
}

// result is what one delivery led to.
type result struct {
	orderID  string
	decision broker.Decision
	from     domain.Status
	to       domain.Status
	err      error
}

// Handle is a broker.Handler.
//
//   - undecodable body or unknown order: drop
//   - order already left CREATED: ack without writing
//   - transition or save failure: requeue; the store still holds CREATED
//   - otherwise: ack after the single write of the final status
func (w *Worker) Handle(ctx context.Context, d broker.Delivery) broker.Decision {
	req, err := domain.DecodeFulfillmentRequest(d.Body())
	if err != nil {
		w.logger.ErrorContext(ctx, "dropping unprocessable message", "error", err)
		return w.finish(ctx, result{decision: broker.Drop, err: err})
	}
	return w.finish(ctx, w.process(ctx, req.OrderID))
}

func (w *Worker) process(ctx context.Context, orderID string) result {
	logger := w.logger.With("order_id", orderID)

	order, err := w.store.Fetch(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.ErrorContext(ctx, "order not found, dropping message", "error", err)
		return result{orderID: orderID, decision: broker.Drop, err: err}
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch order, requeueing", "error", err)
		return result{orderID: orderID, decision: broker.Requeue, err: err}
	}

	from := order.Status
	if from != domain.StatusCreated {
		logger.InfoContext(ctx, "order already processed, acknowledging", "status", from)
		return result{orderID: orderID, decision: broker.Ack, from: from}
	}

	if err := w.fulfiller.Fulfill(ctx, order); err != nil {
		logger.ErrorContext(ctx, "fulfillment failed, requeueing", "error", err)
		return result{orderID: orderID, decision: broker.Requeue, from: from, err: err}
	}

	if err := w.store.Save(ctx, order); err != nil {
		logger.ErrorContext(ctx, "failed to save order, requeueing", "error", err)
		return result{orderID: orderID, decision: broker.Requeue, from: from, err: err}
	}

	logger.InfoContext(ctx, "order processed",
		"status", order.Status,
		"payment_status", order.PaymentStatus,
	)
	return result{orderID: orderID, decision: broker.Ack, from: from, to: order.Status}
}

func (w *Worker) finish(ctx context.Context, r result) broker.Decision {
	if w.journal == nil {
		return r.decision
	}

	entry := auditlog.NewEntry(ctx, r.orderID, r.decision.String(), string(r.from), string(r.to), r.err)
	if err := w.journal.Save(ctx, entry); err != nil {
		w.logger.ErrorContext(ctx, "failed to journal fulfillment decision",
			"order_id", r.orderID,
			"decision", r.decision.String(),
			"error", err,
		)
	}
	return r.decision
}
