package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/api"
)

type fakeTrails struct {
	fakeAudits
	calls []string
	from  time.Time
	to    time.Time
}

var _ Trails = (*fakeTrails)(nil)

func (f *fakeTrails) InventoryByID(_ context.Context, id int) (api.InventoryAudit, error) {
	f.calls = append(f.calls, "inventory/id")
	return api.InventoryAudit{ID: id, ProductName: "Harina", MovementType: "ENTRADA"}, f.err
}

func (f *fakeTrails) InventoryByType(_ context.Context, movementType string) ([]api.InventoryAudit, error) {
	f.calls = append(f.calls, "inventory/type/"+movementType)
	return f.inv, f.err
}

func (f *fakeTrails) InventoryBetween(_ context.Context, from, to time.Time) ([]api.InventoryAudit, error) {
	f.calls = append(f.calls, "inventory/between")
	f.from, f.to = from, to
	return f.inv, f.err
}

func (f *fakeTrails) RecipeAuditByID(_ context.Context, id int) (api.RecipeAudit, error) {
	f.calls = append(f.calls, "recipes/id")
	return api.RecipeAudit{ID: id, RecipeName: "Tortilla"}, f.err
}

func (f *fakeTrails) RecipesByRecipe(context.Context, int) ([]api.RecipeAudit, error) {
	f.calls = append(f.calls, "recipes/recipe")
	return f.rec, f.err
}

func (f *fakeTrails) RecipesByUser(context.Context, int) ([]api.RecipeAudit, error) {
	f.calls = append(f.calls, "recipes/user")
	return f.rec, f.err
}

func (f *fakeTrails) RecipesBetween(context.Context, time.Time, time.Time) ([]api.RecipeAudit, error) {
	f.calls = append(f.calls, "recipes/between")
	return f.rec, f.err
}

func (f *fakeTrails) OrderAuditByID(_ context.Context, id int) (api.OrderAudit, error) {
	f.calls = append(f.calls, "orders/id")
	return api.OrderAudit{ID: id, OrderID: 42}, f.err
}

func (f *fakeTrails) OrdersByOrder(context.Context, int) ([]api.OrderAudit, error) {
	f.calls = append(f.calls, "orders/order")
	return f.ord, f.err
}

func (f *fakeTrails) OrdersByUser(context.Context, int) ([]api.OrderAudit, error) {
	f.calls = append(f.calls, "orders/user")
	return f.ord, f.err
}

func (f *fakeTrails) OrdersBetween(context.Context, time.Time, time.Time) ([]api.OrderAudit, error) {
	f.calls = append(f.calls, "orders/between")
	return f.ord, f.err
}

func TestLoadScopePicksEndpoint(t *testing.T) {
	ctx := context.Background()
	f := &fakeTrails{fakeAudits: fakeAudits{
		inv: []api.InventoryAudit{{ID: 1, ProductName: "Harina", MovementType: "ENTRADA", MovementDate: ts("2025-03-02T10:00")}},
		ord: []api.OrderAudit{{ID: 2, OrderID: 42, Date: ts("2025-03-03T10:00")}},
	}}
	v := New(f)
	v.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, v.LoadScope(ctx, TabOrders, Scope{EntityID: 42, UserID: 3}))
	require.NoError(t, v.LoadScope(ctx, TabOrders, Scope{UserID: 3}))
	require.NoError(t, v.LoadScope(ctx, TabRecipes, Scope{EntityID: 5}))
	require.NoError(t, v.LoadScope(ctx, TabInventory, Scope{MovementType: "ENTRADA"}))
	require.NoError(t, v.LoadScope(ctx, TabInventory, Scope{From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, v.LoadScope(ctx, TabInventory, Scope{MovementType: AllTypes}))
	assert.Equal(t, []string{"orders/order", "orders/user", "recipes/recipe", "inventory/type/ENTRADA", "inventory/between"}, f.calls)
	assert.Equal(t, []int{PageSize}, f.sizes, "the zero scope loads the first page")

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), f.from)
	assert.Equal(t, 10, f.to.Day(), "an open end runs to the end of today")
	assert.Equal(t, 23, f.to.Hour())

	assert.Equal(t, []string{"#42"}, subjects(v.Rows(TabOrders, Filter{})))
	assert.Equal(t, []string{"Harina"}, subjects(v.Rows(TabInventory, Filter{})))
}

func TestLoadScopeRejectsWhatTheTrailCannotNarrow(t *testing.T) {
	ctx := context.Background()
	v := New(&fakeTrails{})
	assert.ErrorIs(t, v.LoadScope(ctx, TabInventory, Scope{UserID: 3}), ErrUnsupportedScope)
	assert.ErrorIs(t, v.LoadScope(ctx, TabOrders, Scope{MovementType: "ENTRADA"}), ErrUnsupportedScope)

	plain := &fakeAudits{}
	v = New(plain)
	assert.ErrorIs(t, v.LoadScope(ctx, TabOrders, Scope{UserID: 3}), ErrUnsupportedScope)
	require.NoError(t, v.LoadScope(ctx, TabOrders, Scope{From: time.Now()}), "date scopes fall back to the first page")
	assert.Equal(t, []int{PageSize}, plain.sizes)
}

func TestLoadScopeFailureIsPerTab(t *testing.T) {
	v := New(&fakeTrails{fakeAudits: fakeAudits{err: errors.New("down")}})
	err := v.LoadScope(context.Background(), TabRecipes, Scope{UserID: 1})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Error al cargar el historial de recetas", le.Error())
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	v := New(&fakeTrails{})
	row, err := v.Record(ctx, TabOrders, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, row.ID)
	assert.Equal(t, "#42", row.Subject)

	row, err = v.Record(ctx, TabInventory, 3)
	require.NoError(t, err)
	assert.Equal(t, "ENTRADA", row.Type)

	row, err = v.Record(ctx, TabRecipes, 4)
	require.NoError(t, err)
	assert.Equal(t, "Tortilla", row.Subject)

	_, err = New(&fakeAudits{}).Record(ctx, TabOrders, 1)
	assert.ErrorIs(t, err, ErrUnsupportedScope)
}
