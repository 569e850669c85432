package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/orders"
)

type fakeAudits struct {
	inv   []api.InventoryAudit
	rec   []api.RecipeAudit
	ord   []api.OrderAudit
	err   error
	sizes []int
}

var _ Audits = (*fakeAudits)(nil)

func (f *fakeAudits) Inventory(_ context.Context, _, size int) (api.Page[api.InventoryAudit], error) {
	f.sizes = append(f.sizes, size)
	return api.Page[api.InventoryAudit]{Items: f.inv}, f.err
}

func (f *fakeAudits) Recipes(_ context.Context, _, size int) (api.Page[api.RecipeAudit], error) {
	f.sizes = append(f.sizes, size)
	return api.Page[api.RecipeAudit]{Items: f.rec}, f.err
}

func (f *fakeAudits) Orders(_ context.Context, _, size int) (api.Page[api.OrderAudit], error) {
	f.sizes = append(f.sizes, size)
	return api.Page[api.OrderAudit]{Items: f.ord}, f.err
}

func ts(s string) orders.Timestamp {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return orders.Timestamp{Time: t}
}

func newViewer(t *testing.T, f *fakeAudits) *Viewer {
	t.Helper()
	v := New(f)
	v.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, tab := range []Tab{TabInventory, TabRecipes, TabOrders} {
		require.NoError(t, v.Load(ctx, tab))
	}
	return v
}

func subjects(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Subject)
	}
	return out
}

func TestInventoryTabFilters(t *testing.T) {
	f := &fakeAudits{inv: []api.InventoryAudit{
		{ID: 1, ProductName: "Harina", UserName: "Ana", MovementType: "ENTRADA", MovementDate: ts("2025-03-01T09:30"), Quantity: decimal.NewNullDecimal(decimal.NewFromInt(5))},
		{ID: 2, ProductName: "Leche", UserName: "Luis", MovementType: "SALIDA", MovementDate: ts("2025-03-05T12:00"), Quantity: decimal.NewNullDecimal(decimal.RequireFromString("-1.5"))},
		{ID: 3, ProductName: "Azúcar", UserName: "Ana", MovementType: "ENTRADA", MovementDate: ts("2025-03-09T23:30")},
	}}
	v := newViewer(t, f)
	assert.Equal(t, []int{PageSize, PageSize, PageSize}, f.sizes)

	assert.Equal(t, []string{"Harina", "Leche", "Azúcar"}, subjects(v.Rows(TabInventory, Filter{})))
	assert.Equal(t, []string{"Harina", "Azúcar"}, subjects(v.Rows(TabInventory, Filter{Query: "ANA"})))
	assert.Equal(t, []string{"Leche"}, subjects(v.Rows(TabInventory, Filter{MovementType: "SALIDA"})))
	assert.Len(t, v.Rows(TabInventory, Filter{MovementType: AllTypes}), 3)
	assert.Equal(t, []string{"ENTRADA", "SALIDA"}, v.MovementTypes())

	to, _ := ParseDay("2025-03-05")
	assert.Equal(t, []string{"Harina", "Leche"}, subjects(v.Rows(TabInventory, Filter{To: to})), "the to day is inclusive")
	from, _ := ParseDay("2025-03-02")
	assert.Equal(t, []string{"Leche", "Azúcar"}, subjects(v.Rows(TabInventory, Filter{From: from})), "missing to means now")

	rows := v.Rows(TabInventory, Filter{})
	assert.Equal(t, "+5.000", rows[0].Quantity)
	assert.Equal(t, "-1.500", rows[1].Quantity)
	assert.Equal(t, "N/A", rows[2].Quantity)
	assert.Equal(t, "1 mar 2025, 09:30", rows[0].DateLabel)
}

func TestRecipeAndOrderTabsSearch(t *testing.T) {
	f := &fakeAudits{
		rec: []api.RecipeAudit{
			{ID: 1, RecipeName: "Bizcocho", UserName: "Ana", Action: "UPDATE"},
			{ID: 2, RecipeName: "Crema", UserName: "Luis"},
		},
		ord: []api.OrderAudit{
			{ID: 1, OrderID: 42, UserName: "Ana"},
			{ID: 2, OrderID: 7, UserName: "Luis"},
			{ID: 3, UserName: "Marta"},
		},
	}
	v := newViewer(t, f)

	assert.Equal(t, []string{"Crema"}, subjects(v.Rows(TabRecipes, Filter{Query: "crem"})))
	assert.Equal(t, []string{"#42"}, subjects(v.Rows(TabOrders, Filter{Query: "4"})))
	assert.Equal(t, []string{"#7"}, subjects(v.Rows(TabOrders, Filter{Query: "luis"})))
	rows := v.Rows(TabOrders, Filter{})
	assert.Equal(t, "#N/A", rows[2].Subject)
	assert.Equal(t, "N/A", rows[2].DateLabel)
}

func TestLoadErrorMessagePerTab(t *testing.T) {
	v := New(&fakeAudits{err: errors.New("Error 500: Internal Server Error")})
	err := v.Load(context.Background(), TabOrders)
	require.Error(t, err)
	assert.Equal(t, "Error al cargar el historial de órdenes", err.Error())
	assert.Empty(t, v.Rows(TabOrders, Filter{}))

	assert.Error(t, v.Load(context.Background(), Tab("stock")))
}

func TestStateDiff(t *testing.T) {
	d := StateDiff(`{"stock":10,"name":"Harina","unit":"kg"}`, `{"stock":15,"name":"Harina","supplier":"Molinos"}`)
	assert.Equal(t, []Field{
		{Key: "stock", Value: "10", Changed: true},
		{Key: "name", Value: "Harina"},
		{Key: "unit", Value: "kg", Changed: true},
		{Key: "supplier", Value: "—", Removed: true},
	}, d.Previous.Fields)
	assert.Equal(t, []Field{
		{Key: "stock", Value: "15", Changed: true},
		{Key: "name", Value: "Harina"},
		{Key: "unit", Value: "—", Removed: true},
		{Key: "supplier", Value: "Molinos", Changed: true},
	}, d.New.Fields)
}

func TestStateDiffEdges(t *testing.T) {
	empty := StateDiff("null", "N/A")
	assert.Equal(t, Side{Text: "—"}, empty.Previous)
	assert.Equal(t, Side{Text: "—"}, empty.New)

	created := StateDiff("", `{"status":"CREATED"}`)
	assert.Equal(t, []Field{{Key: "status", Value: "—", Removed: true}}, created.Previous.Fields)
	assert.Equal(t, []Field{{Key: "status", Value: "CREATED", Changed: true}}, created.New.Fields)

	raw := StateDiff("Estado anterior: la orden estaba pendiente de recepción en almacén", `{"status":"PENDING"}`)
	assert.Equal(t, "Estado anterior: la orden estaba pendiente de rece...", raw.Previous.Text)
	assert.Equal(t, []Field{{Key: "status", Value: "PENDING"}}, raw.New.Fields)

	assert.Equal(t, Side{Text: "corto"}, FormatState("corto"))
	assert.Equal(t, Side{Text: "—"}, FormatState("{}"))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "+0.000", FormatQuantity(decimal.NewNullDecimal(decimal.Zero)))
	assert.Equal(t, "-2.250", FormatQuantity(decimal.NewNullDecimal(decimal.RequireFromString("-2.25"))))
	assert.Equal(t, "N/A", FormatQuantity(decimal.NullDecimal{}))
}

func TestParseTab(t *testing.T) {
	tab, ok := ParseTab("recipes")
	assert.True(t, ok)
	assert.Equal(t, TabRecipes, tab)
	_, ok = ParseTab("stock")
	assert.False(t, ok)
}
