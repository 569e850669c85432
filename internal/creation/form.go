// Package creation builds a new order from a requester and up to MaxLines
// product lines.
package creation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/validation"
)

const MaxLines = 20

const (
	msgLineLimit   = "No puedes agregar más de 20 productos a una orden"
	msgNoUser      = "Debes seleccionar un usuario"
	msgNoLines     = "Debes agregar al menos un producto"
	msgInvalidLine = "Todos los productos deben tener ID y cantidad válidos"
)

var (
	ErrLineLimit = errors.New(msgLineLimit)
	ErrNoLine    = errors.New("creation: no such line")
)

type Users interface {
	List(ctx context.Context) ([]api.User, error)
}

type Products interface {
	List(ctx context.Context, page, size int) (api.Page[orders.Product], error)
}

type Orders interface {
	Create(ctx context.Context, in orders.NewOrder) (orders.Order, error)
}

// Idempotency remembers which order a client key already created.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (orderID int, ok bool, err error)
	Remember(ctx context.Context, key string, orderID int) error
}

type Line struct {
	ProductID int             `json:"productId" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// Draft is the order as submitted.
type Draft struct {
	UserID int    `json:"userId" validate:"required"`
	Lines  []Line `json:"lines" validate:"min=1,max=20,dive"`
}

// ValidationError carries the first message the operator has to fix.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

// CreateError hides the backend failure behind the generic message.
type CreateError struct{ Err error }

func (e *CreateError) Error() string { return "No se pudo crear la orden" }
func (e *CreateError) Unwrap() error { return e.Err }

// Validate checks d in the order the operator sees the problems: user,
// line count, then each line.
func Validate(d Draft) error {
	err := validation.Struct(d)
	if err == nil {
		return nil
	}
	fields := validation.Fields(err)
	if fields == nil {
		return err
	}
	msg := msgInvalidLine
	switch {
	case fields["Draft.UserID"] != "":
		msg = msgNoUser
	case fields["Draft.Lines"] == "max":
		msg = msgLineLimit
	case fields["Draft.Lines"] != "":
		msg = msgNoLines
	}
	return &ValidationError{Message: msg, Fields: fields}
}

type ProductOption struct {
	ID    int         `json:"id"`
	Name  string      `json:"name"`
	Unit  orders.Unit `json:"unit"`
	Label string      `json:"label"`
}

type Options struct {
	Users    []api.User      `json:"users"`
	Products []ProductOption `json:"products"`
}

type Result struct {
	Order    orders.Order `json:"order"`
	Replayed bool         `json:"replayed"`
	Message  string       `json:"message"`
}

// Form is one creation session: the loaded options and the lines being
// edited.
type Form struct {
	users    Users
	products Products
	orders   Orders
	bus      events.Publisher
	idem     Idempotency

	mu    sync.Mutex
	opts  Options
	lines []Line
}

type Option func(*Form)

func WithPublisher(p events.Publisher) Option { return func(f *Form) { f.bus = p } }

func WithIdempotency(i Idempotency) Option { return func(f *Form) { f.idem = i } }

func New(u Users, p Products, o Orders, opts ...Option) *Form {
	f := &Form{users: u, products: p, orders: o}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Load fetches users and products at the same time. Either failing fails
// the whole load.
func (f *Form) Load(ctx context.Context) (Options, error) {
	var (
		users    []api.User
		products api.Page[orders.Product]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = f.users.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = f.products.List(gctx, 0, api.FormProductPageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return Options{}, fmt.Errorf("load creation form: %w", err)
	}

	opts := Options{Users: users, Products: make([]ProductOption, 0, len(products.Items))}
	for _, p := range products.Items {
		opts.Products = append(opts.Products, ProductOption{
			ID: p.ID, Name: p.Name, Unit: p.Unit,
			Label: fmt.Sprintf("%s (%s)", p.Name, p.Unit),
		})
	}

	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()
	return opts, nil
}

// AddLine appends an empty line and returns its index.
func (f *Form) AddLine() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) >= MaxLines {
		return len(f.lines), ErrLineLimit
	}
	f.lines = append(f.lines, Line{})
	return len(f.lines) - 1, nil
}

func (f *Form) SetLine(i, productID int, qty decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.lines) {
		return ErrNoLine
	}
	f.lines[i] = Line{ProductID: productID, Quantity: qty}
	return nil
}

func (f *Form) RemoveLine(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.lines) {
		return ErrNoLine
	}
	f.lines = append(f.lines[:i], f.lines[i+1:]...)
	return nil
}

// Draft returns the edited lines for userID.
func (f *Form) Draft(userID int) Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Draft{UserID: userID, Lines: append([]Line(nil), f.lines...)}
}

// Submit validates d and creates the order with one call. A non-empty key
// that already created an order returns that order without a second call.
func (f *Form) Submit(ctx context.Context, d Draft, key string) (Result, error) {
	if err := Validate(d); err != nil {
		return Result{}, err
	}

	if key != "" && f.idem != nil {
		id, ok, err := f.idem.Lookup(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed")
		} else if ok {
			log.Info().Int("order_id", id).Str("key", key).Msg("order create replayed")
			return Result{Order: orders.Order{ID: id}, Replayed: true, Message: created(id)}, nil
		}
	}

	in := orders.NewOrder{UserID: d.UserID, Lines: make([]orders.NewLine, 0, len(d.Lines))}
	for _, l := range d.Lines {
		in.Lines = append(in.Lines, orders.NewLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	o, err := f.orders.Create(ctx, in)
	if err != nil {
		log.Error().Err(err).Int("user_id", d.UserID).Msg("create order failed")
		return Result{}, &CreateError{Err: err}
	}

	if key != "" && f.idem != nil {
		if err := f.idem.Remember(ctx, key, o.ID); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency store failed")
		}
	}
	if f.bus != nil {
		_, err := f.bus.Publish(ctx, events.OrderCreated, orders.EntityID(o.ID), orders.OrderCreatedPayload{
			OrderID: o.ID, UserID: d.UserID, LineCount: len(d.Lines), Total: o.TotalPrice,
		})
		if err != nil {
			log.Warn().Err(err).Int("order_id", o.ID).Msg("publish order created")
		}
	}

	f.mu.Lock()
	f.lines = nil
	f.mu.Unlock()
	log.Info().Int("order_id", o.ID).Int("lines", len(d.Lines)).Msg("order created")
	return Result{Order: o, Message: created(o.ID)}, nil
}

func created(id int) string { return fmt.Sprintf("Orden #%d creada exitosamente", id) }
