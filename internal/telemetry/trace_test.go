package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestFromContextFallsBackToRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "host/abc-000001")
	assert.Equal(t, TraceInfo{TraceID: "host/abc-000001"}, FromContext(ctx))
	assert.Equal(t, TraceInfo{}, FromContext(context.Background()))
}

func TestExtractTraceparent(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", traceparent)
	ctx := WithRequestID(Extract(context.Background(), h), "host/abc-000001")

	assert.Equal(t, TraceInfo{
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:  "00f067aa0ba902b7",
	}, FromContext(ctx))

	out := http.Header{}
	Inject(ctx, out)
	assert.Equal(t, traceparent, out.Get("traceparent"))
}

func TestMalformedTraceparentIsIgnored(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-zz-00f067aa0ba902b7-01")
	ctx := WithRequestID(Extract(context.Background(), h), "req-1")
	assert.Equal(t, TraceInfo{TraceID: "req-1"}, FromContext(ctx))

	out := http.Header{}
	Inject(ctx, out)
	assert.Empty(t, out.Get("traceparent"))
}
