// Package inbox receives envelopes published by peer desk instances and
// hands them to the local bus once.
package inbox

import (
	"context"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/economato/go-order-desk/internal/events"
	kafkax "github.com/economato/go-order-desk/internal/kafka"
)

// Deduper marks an event id as handled and reports whether it already was.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

type Service struct {
	Bus   *events.Bus
	Dedup Deduper
}

// Handle is the consumer handler. Malformed messages, this instance's own
// envelopes and duplicates are committed without delivery.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	if p := kafkax.HeaderValue(m, kafkax.HeaderProducer); p != "" && p == s.Bus.Producer() {
		return nil
	}
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping malformed envelope")
		return nil
	}
	if env.Producer == s.Bus.Producer() {
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			// delivering twice is harmless: subscribers re-fetch
			log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup check failed")
		} else if seen {
			return nil
		}
	}

	s.Bus.Deliver(env)
	log.Debug().Str("event_id", env.EventID).Str("kind", string(env.Kind)).Str("producer", env.Producer).Msg("relayed peer event")
	return nil
}
