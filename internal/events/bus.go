// Package events is the in-process notification bus shared by the desk
// sections. Subscribers default to re-fetching on any signal; the typed
// payload lets them apply a targeted update instead.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/telemetry"
)

type Kind string

const (
	OrderCreated       Kind = "orderCreated"
	OrderUpdated       Kind = "orderUpdated"
	ProductDataChanged Kind = "productDataChanged"
	RecipeChanged      Kind = "recipeChanged"
	RouteChanged       Kind = "routeChanged"
)

type Envelope struct {
	EventID    string          `json:"event_id"`
	Kind       Kind            `json:"event_type"`
	Version    int             `json:"event_version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	TraceID    string          `json:"trace_id,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Decode unwraps an envelope payload into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if len(env.Payload) == 0 {
		return t, fmt.Errorf("decode %s payload: empty", env.Kind)
	}
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return t, nil
}

// Publisher is the side of the bus the sections use.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, entityID string, payload any) (Envelope, error)
}

type Bus struct {
	producer string
	buf      int

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewBus(producer string, buf int) *Bus {
	if buf <= 0 {
		buf = 16
	}
	return &Bus{producer: producer, buf: buf, subs: make(map[*Subscription]struct{})}
}

func (b *Bus) Producer() string { return b.producer }

// Publish wraps payload in a new envelope and delivers it locally.
func (b *Bus) Publish(ctx context.Context, kind Kind, entityID string, payload any) (Envelope, error) {
	env := Envelope{
		EventID:    uuid.NewString(),
		Kind:       kind,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Producer:   b.producer,
		TraceID:    telemetry.FromContext(ctx).TraceID,
		EntityID:   entityID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		env.Payload = raw
	}
	b.Deliver(env)
	return env, nil
}

// Deliver fans env out to every matching subscription. A subscriber whose
// buffer is full misses the signal; the next one makes it re-fetch anyway.
func (b *Bus) Deliver(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(env.Kind) {
			continue
		}
		select {
		case s.ch <- env:
		default:
			log.Warn().Str("kind", string(env.Kind)).Str("event_id", env.EventID).Msg("subscriber buffer full, signal dropped")
		}
	}
}

// Subscribe registers for the given kinds, or for everything when none
// are given.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	s := &Subscription{bus: b, ch: make(chan Envelope, b.buf)}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Listen subscribes before returning, then calls fn from a goroutine for
// every matching envelope until ctx is done.
func (b *Bus) Listen(ctx context.Context, fn func(context.Context, Envelope), kinds ...Kind) {
	sub := b.Subscribe(kinds...)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-sub.C():
				if !ok {
					return
				}
				fn(ctx, env)
			}
		}
	}()
}

type Subscription struct {
	bus   *Bus
	kinds map[Kind]bool
	ch    chan Envelope
	once  sync.Once
}

func (s *Subscription) C() <-chan Envelope { return s.ch }

func (s *Subscription) wants(k Kind) bool {
	return s.kinds == nil || s.kinds[k]
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
