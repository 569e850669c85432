// Package router tracks which desk section is active and remembers it
// between visits.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/events"
)

// StoreKey is where the last route is kept.
const StoreKey = "spa_current_route"

type Route struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Label string `json:"label"`
}

var routes = []Route{
	{Name: "inventory", Index: 0, Label: "Inventario"},
	{Name: "reception", Index: 1, Label: "Recepción"},
	{Name: "history", Index: 2, Label: "Historial"},
	{Name: "recipes", Index: 3, Label: "Recetas"},
}

const DefaultRoute = "inventory"

var ErrUnknownRoute = errors.New("router: unknown route")

// Routes lists every section in menu order.
func Routes() []Route { return append([]Route(nil), routes...) }

func Lookup(name string) (Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

func ByIndex(i int) (Route, bool) {
	for _, r := range routes {
		if r.Index == i {
			return r, true
		}
	}
	return Route{}, false
}

// Store persists the last route of one session.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, route string) error
}

type ChangedPayload struct {
	Route Route `json:"route"`
}

type Router struct {
	store Store
	bus   events.Publisher
	// entity scopes routeChanged envelopes, usually to a session
	entity string

	mu      sync.Mutex
	current Route
}

func New(store Store, bus events.Publisher, entity string) *Router {
	def, _ := Lookup(DefaultRoute)
	return &Router{store: store, bus: bus, entity: entity, current: def}
}

// Restore navigates to the stored route, or to inventory when nothing
// valid is stored.
func (r *Router) Restore(ctx context.Context) Route {
	name, err := r.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("read stored route")
	}
	if _, ok := Lookup(name); !ok {
		name = DefaultRoute
	}
	route, _ := r.Navigate(ctx, name)
	return route
}

// Navigate makes name the active route, stores it and announces it. An
// unknown name changes nothing.
func (r *Router) Navigate(ctx context.Context, name string) (Route, error) {
	route, ok := Lookup(name)
	if !ok {
		return r.Current(), fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	r.mu.Lock()
	r.current = route
	r.mu.Unlock()

	if err := r.store.Save(ctx, route.Name); err != nil {
		log.Warn().Err(err).Str("route", route.Name).Msg("save route")
	}
	if r.bus != nil {
		if _, err := r.bus.Publish(ctx, events.RouteChanged, r.entity, ChangedPayload{Route: route}); err != nil {
			log.Warn().Err(err).Str("route", route.Name).Msg("publish route change")
		}
	}
	return route, nil
}

func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// MemoryStore keeps the route in process.
type MemoryStore struct {
	mu    sync.Mutex
	route string
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.route, nil
}

func (m *MemoryStore) Save(_ context.Context, route string) error {
	m.mu.Lock()
	m.route = route
	m.mu.Unlock()
	return nil
}
