// Package telemetry reads correlation identifiers out of a context.
package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// W3C trace context; baggage is not carried.
var propagator = propagation.TraceContext{}

// TraceInfo holds the identifiers stamped on journal entries and envelopes.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

type requestIDKey struct{}

// WithRequestID stores a request id used when no span is active.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns the active OpenTelemetry span ids. Without a valid
// span the trace id falls back to the request id and the span id is empty.
func FromContext(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{TraceID: RequestID(ctx)}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// Extract returns ctx carrying the remote span named by a traceparent
// header. A missing or malformed header leaves ctx as it is.
func Extract(ctx context.Context, h http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(h))
}

// Inject writes the span of ctx, if any, as traceparent on h.
func Inject(ctx context.Context, h http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(h))
}
