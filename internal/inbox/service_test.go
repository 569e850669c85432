package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/events"
	kafkax "github.com/economato/go-order-desk/internal/kafka"
)

type memDedup struct {
	seen map[string]bool
	err  error
}

var _ Deduper = (*memDedup)(nil)

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	was := d.seen[id]
	d.seen[id] = true
	return was, nil
}

func message(env events.Envelope) kafkago.Message {
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func receive(t *testing.T, sub *events.Subscription) (events.Envelope, bool) {
	t.Helper()
	select {
	case env := <-sub.C():
		return env, true
	case <-time.After(50 * time.Millisecond):
		return events.Envelope{}, false
	}
}

func TestHandleDeliversPeerEnvelopesOnce(t *testing.T) {
	bus := events.NewBus("desk-a", 4)
	sub := bus.Subscribe()
	defer sub.Close()
	s := &Service{Bus: bus, Dedup: &memDedup{seen: map[string]bool{}}}
	ctx := context.Background()

	env := events.Envelope{EventID: "e-1", Kind: events.OrderUpdated, Producer: "desk-b", EntityID: "order:42"}
	require.NoError(t, s.Handle(ctx, message(env)))
	require.NoError(t, s.Handle(ctx, message(env)))

	got, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, "e-1", got.EventID)
	_, again := receive(t, sub)
	assert.False(t, again, "duplicate must not be delivered")
}

func TestHandleSkipsOwnAndMalformed(t *testing.T) {
	bus := events.NewBus("desk-a", 4)
	sub := bus.Subscribe()
	defer sub.Close()
	s := &Service{Bus: bus}
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(events.Envelope{EventID: "e-2", Producer: "desk-a"})))
	require.NoError(t, s.Handle(ctx, kafkago.Message{
		Value:   kafkax.MustMarshal(events.Envelope{EventID: "e-3", Producer: "desk-b"}),
		Headers: []kafkago.Header{{Key: kafkax.HeaderProducer, Value: []byte("desk-a")}},
	}))
	require.NoError(t, s.Handle(ctx, kafkago.Message{Value: []byte("{not json")}))

	_, ok := receive(t, sub)
	assert.False(t, ok)
}

func TestHandleDeliversWhenDedupFails(t *testing.T) {
	bus := events.NewBus("desk-a", 4)
	sub := bus.Subscribe()
	defer sub.Close()
	s := &Service{Bus: bus, Dedup: &memDedup{err: errors.New("redis down")}}

	require.NoError(t, s.Handle(context.Background(), message(events.Envelope{EventID: "e-4", Producer: "desk-b"})))
	_, ok := receive(t, sub)
	assert.True(t, ok)
}
