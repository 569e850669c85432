package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Handler returns nil only when the message may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	handleAttempts = 3
	retryBackoff   = 200 * time.Millisecond
)

// Consumer reads desk envelopes from one topic. Messages sharing a key go to
// the same lane, so events of one order are handled in the order they were
// published.
type Consumer struct {
	r     *kafka.Reader
	lanes int
}

func NewConsumer(brokers []string, group, topic string, lanes int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	if lanes <= 0 {
		lanes = 1
	}
	return &Consumer{r: r, lanes: lanes}
}

// Start blocks until ctx is done or the reader fails. A message whose
// handler keeps failing is logged and committed so the lane moves on.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.lanes)
	g, gctx := errgroup.WithContext(ctx)
	for i := range lanes {
		lane := make(chan kafka.Message, 64)
		lanes[i] = lane
		g.Go(func() error {
			for m := range lane {
				if err := handle(gctx, h, m, handleAttempts, retryBackoff); err != nil {
					log.Error().Err(err).Str("key", string(m.Key)).Int64("offset", m.Offset).Msg("desk event dropped")
				}
				if err := c.r.CommitMessages(gctx, m); err != nil {
					return err
				}
			}
			return nil
		})
	}

	fetchErr := c.fetch(gctx, lanes)
	for _, lane := range lanes {
		close(lane)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if fetchErr != nil && ctx.Err() == nil {
		return fetchErr
	}
	return nil
}

func (c *Consumer) fetch(ctx context.Context, lanes []chan kafka.Message) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return err
		}
		select {
		case lanes[laneFor(m.Key, len(lanes))] <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func laneFor(key []byte, n int) int {
	if n <= 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

// handle runs h up to attempts times, doubling the pause between tries.
func handle(ctx context.Context, h Handler, m kafka.Message, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Str("key", string(m.Key)).Msg("desk event handler failed")
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
