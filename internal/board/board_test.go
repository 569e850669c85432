package board

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
)

type fakeSource struct {
	list    []orders.Order
	err     error
	listed  int
	updates []orders.Status
}

var _ Source = (*fakeSource)(nil)

func (f *fakeSource) List(context.Context) ([]orders.Order, error) {
	f.listed++
	return f.list, f.err
}

func (f *fakeSource) Get(_ context.Context, id int) (orders.Order, error) {
	for _, o := range f.list {
		if o.ID == id {
			return o, nil
		}
	}
	return orders.Order{}, errors.New("Orden no encontrada")
}

func (f *fakeSource) UpdateStatus(_ context.Context, id int, s orders.Status) (orders.Order, error) {
	f.updates = append(f.updates, s)
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].Status = s
			return f.list[i], nil
		}
	}
	return orders.Order{}, errors.New("Orden no encontrada")
}

type memCache struct {
	mu          sync.Mutex
	list        []orders.Order
	ok          bool
	invalidated int
}

var _ Cache = (*memCache)(nil)

func (m *memCache) Load(context.Context) ([]orders.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list, m.ok, nil
}

func (m *memCache) Store(_ context.Context, l []orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list, m.ok = l, true
	return nil
}

func (m *memCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list, m.ok = nil, false
	m.invalidated++
	return nil
}

func (m *memCache) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated
}

func line(typ string) orders.Line { return orders.Line{ProductType: typ, Quantity: decimal.NewFromInt(1)} }

func sample() []orders.Order {
	return []orders.Order{
		{ID: 1, UserName: "Ana", Status: orders.StatusCreated, TotalPrice: decimal.RequireFromString("12.5"), Lines: []orders.Line{line("Ingrediente")}},
		{ID: 2, UserName: "Luis", Status: orders.StatusPending, Lines: []orders.Line{line("bebida")}},
		{ID: 3, UserName: "Marta", Status: orders.StatusReview},
		{ID: 14, UserName: "Juan", Status: orders.StatusConfirmed, Lines: []orders.Line{line("Ingrediente")}},
		{ID: 5, UserName: "Ana", Status: orders.StatusCreated, Lines: []orders.Line{line("Ingrediente")}},
	}
}

func TestLoadGroupsAndTypes(t *testing.T) {
	b := New(&fakeSource{list: sample()}, nil, nil)
	require.NoError(t, b.Load(context.Background()))

	v := b.View()
	assert.Equal(t, []TypeOption{
		{Value: "Ingrediente", Label: "Ingrediente"},
		{Value: "bebida", Label: "Bebida"},
		{Value: "General", Label: "General"},
	}, v.Types)

	keys := []string{}
	for _, g := range v.Groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"Ingrediente - Creado", "bebida - Pendiente", "General - En Revisión", "Ingrediente - Completado"}, keys)
	assert.Len(t, v.Groups[0].Cards, 2)
	assert.Equal(t, "AN", v.Groups[0].Cards[0].Initials)
	assert.Equal(t, "€12.50", v.Groups[0].Cards[0].TotalLabel)
	assert.Equal(t, "Procesada", v.Groups[3].Cards[0].Next.Final)
}

func TestFilterBySearchAndFacet(t *testing.T) {
	b := New(&fakeSource{list: sample()}, nil, nil)
	require.NoError(t, b.Load(context.Background()))

	b.SetQuery("an")
	ids := func() []int {
		var out []int
		for _, o := range b.Filtered() {
			out = append(out, o.ID)
		}
		return out
	}
	assert.Equal(t, []int{1, 14, 5}, ids())

	b.SetFacet("Ingrediente")
	b.SetQuery("1")
	assert.Equal(t, []int{1, 14}, ids())

	b.SetFacet(AllTypes)
	b.SetQuery("")
	assert.Len(t, b.Filtered(), 5)

	b.SetQuery("nadie")
	assert.True(t, b.View().Empty)
}

func TestLoadFailureShowsRawMessage(t *testing.T) {
	b := New(&fakeSource{err: errors.New("Error 500: Internal Server Error")}, nil, nil)
	require.Error(t, b.Load(context.Background()))
	v := b.View()
	assert.Equal(t, "Error 500: Internal Server Error", v.Error)
	assert.True(t, v.Empty)
}

func TestCacheServesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{list: sample()}
	cache := &memCache{}
	bus := events.NewBus("test", 4)
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	InvalidateOn(listenCtx, bus, cache)

	b := New(src, bus, cache)
	require.NoError(t, b.Load(ctx))
	require.NoError(t, New(src, bus, cache).Load(ctx))
	assert.Equal(t, 1, src.listed)

	_, err := b.Act(ctx, 1, orders.ActionMarkReceived)
	require.NoError(t, err)
	require.NoError(t, New(src, bus, cache).Load(ctx))
	assert.Equal(t, 2, src.listed)
	assert.GreaterOrEqual(t, cache.count(), 1)
}

func TestActFollowsNextAction(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{list: sample()}
	bus := events.NewBus("test", 4)
	sub := bus.Subscribe(events.OrderUpdated)
	defer sub.Close()
	b := New(src, bus, nil)

	res, err := b.Act(ctx, 1, orders.ActionMarkReceived)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, res.Order.Status)
	assert.Equal(t, "✓ Orden marcada como recibida", res.Message)

	env := <-sub.C()
	p, err := events.Decode[orders.OrderUpdatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderUpdatedPayload{OrderID: 1, From: orders.StatusCreated, To: orders.StatusPending, Reason: orders.ReasonBoard}, p)

	_, err = b.Act(ctx, 1, orders.ActionReview)
	assert.ErrorIs(t, err, ErrOpensReception)

	_, err = b.Act(ctx, 3, orders.ActionComplete)
	require.NoError(t, err)
	_, err = b.Act(ctx, 14, orders.ActionMarkIncomplete)
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	assert.Equal(t, []orders.Status{orders.StatusPending, orders.StatusCompleted}, src.updates)
}

func TestDetail(t *testing.T) {
	src := &fakeSource{list: []orders.Order{{
		ID: 9, UserName: "Ana", Status: orders.StatusIncomplete,
		Lines: []orders.Line{{
			ProductID: 7, ProductName: "Harina",
			Quantity:         decimal.NewFromInt(5),
			QuantityReceived: decimal.NewNullDecimal(decimal.NewFromInt(4)),
			UnitPrice:        decimal.RequireFromString("1.5"),
			Price:            decimal.RequireFromString("7.5"),
		}},
	}}}
	d, err := New(src, nil, nil).Detail(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Incompleto", d.StatusLabel)
	require.Len(t, d.Lines, 1)
	assert.True(t, d.Lines[0].Received.Valid)
	assert.Equal(t, "4", d.Lines[0].Received.Decimal.String())
}

func TestExportWritesFilteredRows(t *testing.T) {
	b := New(&fakeSource{list: sample()}, nil, nil)
	require.NoError(t, b.Load(context.Background()))
	b.SetFacet("Ingrediente")

	var buf bytes.Buffer
	require.NoError(t, b.Export(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{"1", "Ana", "", "Ingrediente", "Creado", "1", "12.5"}, rows[1])
	assert.Equal(t, "Completado", rows[2][4])
}
