package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
)

// Sink is what the forwarder writes to; *Producer satisfies it.
type Sink interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

var _ Sink = (*Producer)(nil)

// Forward copies every envelope this instance publishes on the bus to the
// sink until ctx is done. It returns once subscribed. Envelopes relayed in
// from peers are skipped so they do not bounce back.
func Forward(ctx context.Context, bus *events.Bus, sink Sink) {
	bus.Listen(ctx, func(_ context.Context, env events.Envelope) {
		if env.Producer != bus.Producer() {
			return
		}
		sink.Publish(orders.PartitionKey(env.EntityID), MustMarshal(env), envelopeHeaders(env)...)
	})
}
