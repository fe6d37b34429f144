package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const (
	HeaderXRequestID = "X-Request-Id"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = "x-request-id"
)

// RequestID returns the request id stored by AttachRequestMetadata.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// AttachRequestMetadata copies chi's request id into the context, echoes it
// back in the response and tags the active server span with it.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
		if requestID != "" {
			w.Header().Set(HeaderXRequestID, requestID)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request_id", requestID))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request through logger, so records carry
// the trace and span ids of the request context.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.InfoContext(r.Context(), "request served",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", RequestID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
