// Package auditlog records what the fulfillment worker decided for every
// message it handled.
//
// Each row ties an order to the decision taken, the status change (if any)
// and the trace that produced it, so a support query can jump from an order
// id straight to the distributed trace.
package auditlog

import "time"

// Entry is one handled delivery.
type Entry struct {
	OrderID string

	// Decision is how the delivery was settled: ack, nack-requeue or nack-drop.
	Decision string

	// FromStatus is the status read from the store; empty when the order
	// could not be loaded.
	FromStatus string

	// ToStatus is the status written back; empty when nothing was written.
	ToStatus string

	// Error is the failure that led to a requeue or drop.
	Error string

	TraceID string
	SpanID  string

	RecordedAt time.Time
}
