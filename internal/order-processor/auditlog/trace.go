package auditlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	// TraceID is the W3C trace ID (32 lowercase hex chars), empty without
	// an active span.
	TraceID string

	// SpanID is the W3C span ID (16 lowercase hex chars).
	SpanID string
}

// ExtractTraceInfo returns the ids of the span active in ctx.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an entry stamped with the trace of ctx.
//
//	entry := auditlog.NewEntry(ctx, orderID, "ack", "CREATED", "SHIPPED", nil)
func NewEntry(ctx context.Context, orderID, decision, from, to string, cause error) *Entry {
	ti := ExtractTraceInfo(ctx)

	var msg string
	if cause != nil {
		msg = cause.Error()
	}

	return &Entry{
		OrderID:    orderID,
		Decision:   decision,
		FromStatus: from,
		ToStatus:   to,
		Error:      msg,
		TraceID:    ti.TraceID,
		SpanID:     ti.SpanID,
		RecordedAt: time.Now().UTC(),
	}
}
