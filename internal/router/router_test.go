package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/events"
)

var _ Store = (*MemoryStore)(nil)

type brokenStore struct{}

func (brokenStore) Load(context.Context) (string, error) { return "", errors.New("redis down") }
func (brokenStore) Save(context.Context, string) error { return errors.New("redis down") }

func TestRestoreFallsBackToInventory(t *testing.T) {
	ctx := context.Background()
	for _, stored := range []string{"", "dashboard", "Recipes"} {
		s := &MemoryStore{route: stored}
		got := New(s, nil, "").Restore(ctx)
		assert.Equal(t, "inventory", got.Name, "stored %q", stored)
		saved, _ := s.Load(ctx)
		assert.Equal(t, "inventory", saved)
	}

	s := &MemoryStore{route: "history"}
	assert.Equal(t, Route{Name: "history", Index: 2, Label: "Historial"}, New(s, nil, "").Restore(ctx))
}

func TestRestoreSurvivesStoreErrors(t *testing.T) {
	r := New(brokenStore{}, nil, "")
	assert.Equal(t, "inventory", r.Restore(context.Background()).Name)
	route, err := r.Navigate(context.Background(), "recipes")
	require.NoError(t, err)
	assert.Equal(t, 3, route.Index)
}

func TestNavigatePersistsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus("test", 4)
	sub := bus.Subscribe(events.RouteChanged)
	defer sub.Close()
	s := &MemoryStore{}
	r := New(s, bus, "session:abc")

	route, err := r.Navigate(ctx, "reception")
	require.NoError(t, err)
	assert.Equal(t, "Recepción", route.Label)
	assert.Equal(t, route, r.Current())
	saved, _ := s.Load(ctx)
	assert.Equal(t, "reception", saved)

	env := <-sub.C()
	assert.Equal(t, "session:abc", env.EntityID)
	p, err := events.Decode[ChangedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Route.Index)

	_, err = r.Navigate(ctx, "settings")
	assert.ErrorIs(t, err, ErrUnknownRoute)
	assert.Equal(t, "reception", r.Current().Name)
}

func TestByIndex(t *testing.T) {
	r, ok := ByIndex(3)
	assert.True(t, ok)
	assert.Equal(t, "recipes", r.Name)
	_, ok = ByIndex(4)
	assert.False(t, ok)
	assert.Len(t, Routes(), 4)
}
