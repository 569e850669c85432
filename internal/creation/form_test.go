package creation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
)

type fakeBackend struct {
	mu       sync.Mutex
	users    []api.User
	products []orders.Product
	usersErr error
	size     int
	created  []orders.NewOrder
	createOK bool
}

var (
	_ Users    = (*fakeUsers)(nil)
	_ Products = (*fakeBackend)(nil)
	_ Orders   = (*fakeBackend)(nil)
)

type fakeUsers struct{ b *fakeBackend }

func (u fakeUsers) List(context.Context) ([]api.User, error) { return u.b.users, u.b.usersErr }

func (b *fakeBackend) List(_ context.Context, page, size int) (api.Page[orders.Product], error) {
	b.mu.Lock()
	b.size = size
	b.mu.Unlock()
	return api.Page[orders.Product]{Items: b.products, Number: page, Size: size}, nil
}

func (b *fakeBackend) Create(_ context.Context, in orders.NewOrder) (orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.createOK {
		return orders.Order{}, &api.HTTPError{Status: 400, Message: "Usuario no encontrado"}
	}
	b.created = append(b.created, in)
	return orders.Order{ID: 100 + len(b.created), UserID: in.UserID, Status: orders.StatusCreated, TotalPrice: decimal.NewFromInt(9)}, nil
}

type memIdem struct{ m map[string]int }

var _ Idempotency = (*memIdem)(nil)

func (i *memIdem) Lookup(_ context.Context, key string) (int, bool, error) {
	id, ok := i.m[key]
	return id, ok, nil
}

func (i *memIdem) Remember(_ context.Context, key string, id int) error {
	i.m[key] = id
	return nil
}

func newForm(b *fakeBackend, opts ...Option) *Form {
	return New(fakeUsers{b}, b, b, opts...)
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLoadFetchesUsersAndProducts(t *testing.T) {
	b := &fakeBackend{
		users:    []api.User{{ID: 3, Name: "Ana"}},
		products: []orders.Product{{ID: 7, Name: "Harina", Unit: orders.UnitKilogram}},
	}
	opts, err := newForm(b).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.FormProductPageSize, b.size)
	assert.Equal(t, []ProductOption{{ID: 7, Name: "Harina", Unit: "kg", Label: "Harina (kg)"}}, opts.Products)
	assert.Len(t, opts.Users, 1)
}

func TestLoadFailsWhenEitherSideFails(t *testing.T) {
	b := &fakeBackend{usersErr: errors.New("Error 500: Internal Server Error")}
	_, err := newForm(b).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error 500")
}

func TestLineLimit(t *testing.T) {
	f := newForm(&fakeBackend{})
	for i := 0; i < MaxLines; i++ {
		_, err := f.AddLine()
		require.NoError(t, err)
	}
	_, err := f.AddLine()
	require.ErrorIs(t, err, ErrLineLimit)
	assert.Equal(t, "No puedes agregar más de 20 productos a una orden", err.Error())
	assert.Len(t, f.Draft(1).Lines, MaxLines)

	require.NoError(t, f.RemoveLine(0))
	_, err = f.AddLine()
	assert.NoError(t, err)
	assert.ErrorIs(t, f.SetLine(MaxLines, 1, qty("1")), ErrNoLine)
}

func TestValidationMessages(t *testing.T) {
	good := Line{ProductID: 7, Quantity: qty("2")}
	tooMany := make([]Line, MaxLines+1)
	for i := range tooMany {
		tooMany[i] = good
	}
	cases := []struct {
		name  string
		draft Draft
		want  string
	}{
		{"no user", Draft{Lines: []Line{good}}, "Debes seleccionar un usuario"},
		{"no user and no lines", Draft{}, "Debes seleccionar un usuario"},
		{"no lines", Draft{UserID: 3}, "Debes agregar al menos un producto"},
		{"missing product", Draft{UserID: 3, Lines: []Line{good, {Quantity: qty("1")}}}, "Todos los productos deben tener ID y cantidad válidos"},
		{"zero quantity", Draft{UserID: 3, Lines: []Line{{ProductID: 7}}}, "Todos los productos deben tener ID y cantidad válidos"},
		{"negative quantity", Draft{UserID: 3, Lines: []Line{{ProductID: 7, Quantity: qty("-1")}}}, "Todos los productos deben tener ID y cantidad válidos"},
		{"too many lines", Draft{UserID: 3, Lines: tooMany}, "No puedes agregar más de 20 productos a una orden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.draft)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.want, ve.Message)
		})
	}
	assert.NoError(t, Validate(Draft{UserID: 3, Lines: []Line{good, {ProductID: 9, Quantity: qty("0.5")}}}))
}

func TestSubmitCreatesAndPublishes(t *testing.T) {
	b := &fakeBackend{createOK: true}
	bus := events.NewBus("test", 4)
	sub := bus.Subscribe(events.OrderCreated)
	defer sub.Close()

	f := newForm(b, WithPublisher(bus))
	i, _ := f.AddLine()
	require.NoError(t, f.SetLine(i, 7, qty("2.5")))

	res, err := f.Submit(context.Background(), f.Draft(3), "")
	require.NoError(t, err)
	assert.Equal(t, "Orden #101 creada exitosamente", res.Message)
	require.Len(t, b.created, 1)
	assert.Equal(t, 3, b.created[0].UserID)
	assert.True(t, b.created[0].Lines[0].Quantity.Equal(qty("2.5")))
	assert.Empty(t, f.Draft(3).Lines, "lines are cleared after a successful submit")

	env := <-sub.C()
	p, err := events.Decode[orders.OrderCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, 101, p.OrderID)
	assert.Equal(t, 1, p.LineCount)
	assert.Equal(t, "order:101", env.EntityID)
}

func TestSubmitInvalidMakesNoCall(t *testing.T) {
	b := &fakeBackend{createOK: true}
	_, err := newForm(b).Submit(context.Background(), Draft{UserID: 3}, "")
	require.Error(t, err)
	assert.Empty(t, b.created)
}

func TestSubmitFailureIsGeneric(t *testing.T) {
	b := &fakeBackend{}
	_, err := newForm(b).Submit(context.Background(), Draft{UserID: 3, Lines: []Line{{ProductID: 7, Quantity: qty("1")}}}, "")
	var ce *CreateError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "No se pudo crear la orden", err.Error())
	assert.Equal(t, 400, api.StatusOf(err))
}

func TestSubmitReplaysIdempotencyKey(t *testing.T) {
	b := &fakeBackend{createOK: true}
	f := newForm(b, WithIdempotency(&memIdem{m: map[string]int{}}))
	d := Draft{UserID: 3, Lines: []Line{{ProductID: 7, Quantity: qty("1")}}}

	first, err := f.Submit(context.Background(), d, "k-1")
	require.NoError(t, err)
	again, err := f.Submit(context.Background(), d, "k-1")
	require.NoError(t, err)

	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Len(t, b.created, 1)
}
