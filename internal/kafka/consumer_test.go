package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneForKeepsKeysTogether(t *testing.T) {
	assert.Equal(t, 0, laneFor([]byte("order:1"), 1))
	assert.Equal(t, 0, laneFor(nil, 4))
	a := laneFor([]byte("order:42"), 4)
	assert.Equal(t, a, laneFor([]byte("order:42"), 4))
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 4)
}

func TestHandleRetriesThenGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := handle(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return boom
	}, kafka.Message{}, 3, time.Millisecond)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestHandleStopsOnSuccess(t *testing.T) {
	calls := 0
	err := handle(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, kafka.Message{}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestHandleHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := handle(ctx, func(context.Context, kafka.Message) error { return errors.New("down") }, kafka.Message{}, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
