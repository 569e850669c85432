package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	batchSize     = 50
	flushInterval = 100 * time.Millisecond
	writeTimeout  = 5 * time.Second
)

// Producer batches desk envelopes onto the events topic. Publish never
// blocks the bus: when the buffer is full the message is dropped, since
// peers re-fetch on the next signal anyway.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchSize:    batchSize,
		},
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
}

// Start runs the write loop until Close. ctx bounds nothing but the log
// fields; writes use their own timeout so a shutdown still flushes.
func (p *Producer) Start(ctx context.Context) {
	topic := p.w.Topic
	go func() {
		defer close(p.done)
		tick := time.NewTicker(flushInterval)
		defer tick.Stop()

		batch := make([]kafka.Message, 0, batchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			if err := p.w.WriteMessages(wctx, batch...); err != nil {
				log.Error().Err(err).Int("messages", len(batch)).Str("topic", topic).Msg("kafka write failed")
			}
			cancel()
			batch = batch[:0]
		}
		for {
			select {
			case m, ok := <-p.inbox:
				if !ok {
					flush()
					if err := p.w.Close(); err != nil {
						log.Warn().Err(err).Msg("kafka writer close")
					}
					return
				}
				batch = append(batch, m)
				if len(batch) == batchSize {
					flush()
				}
			case <-tick.C:
				flush()
			}
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.inbox <- m:
	default:
		n := p.dropped.Add(1)
		log.Warn().Str("key", string(key)).Int64("dropped", n).Msg("kafka buffer full, event dropped")
	}
}

// Dropped counts messages refused because the buffer was full.
func (p *Producer) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting messages; the loop flushes the rest and exits.
// Later publishes count as dropped.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the loop has exited.
func (p *Producer) WaitClosed() { <-p.done }
