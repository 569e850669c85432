// Package reception reconciles what arrived against what was ordered,
// moves product stock by the received quantities and closes the order.
package reception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/journal"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/saga"
	"github.com/economato/go-order-desk/internal/search"
)

type Orders interface {
	ByStatus(ctx context.Context, s orders.Status) ([]orders.Order, error)
	Get(ctx context.Context, id int) (orders.Order, error)
	UpdateStatus(ctx context.Context, id int, s orders.Status) (orders.Order, error)
}

type Products interface {
	Get(ctx context.Context, id int) (orders.Product, error)
	Update(ctx context.Context, id int, p orders.Product) (orders.Product, error)
}

// Locker guards one order against two receptions at once.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Confirmer asks the operator before anything is written.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Confirmed answers yes without asking.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, Prompt) (bool, error) { return true, nil })

type Prompt struct {
	OrderID     int         `json:"orderId"`
	Disposition Disposition `json:"disposition"`
	Message     string      `json:"message"`
}

var (
	ErrCancelled         = errors.New("reception: cancelled by operator")
	ErrInvalidTransition = errors.New("reception: order cannot be received in its current status")
	ErrNoForm            = errors.New("reception: no form open")
)

// Result describes a reception that ran, fully or up to a failed step.
type Result struct {
	SagaID        string              `json:"sagaId"`
	OrderID       int                 `json:"orderId"`
	Disposition   Disposition         `json:"disposition,omitempty"`
	Status        orders.Status       `json:"status"`
	Order         *orders.Order       `json:"order,omitempty"`
	Deltas        []orders.StockDelta `json:"deltas"`
	ReceivedValue decimal.Decimal     `json:"receivedValue"`
	Message       string              `json:"message"`
}

// Workflow is the reception state of one operator session.
type Workflow struct {
	orders   Orders
	products Products
	bus      events.Publisher
	sagas    *saga.Orchestrator
	locker   Locker

	mu      sync.Mutex
	pending []orders.Order
	form    *Form
}

type Option func(*Workflow)

func WithLocker(l Locker) Option { return func(w *Workflow) { w.locker = l } }

func WithPublisher(p events.Publisher) Option { return func(w *Workflow) { w.bus = p } }

func WithOrchestrator(o *saga.Orchestrator) Option { return func(w *Workflow) { w.sagas = o } }

func New(o Orders, p Products, opts ...Option) *Workflow {
	w := &Workflow{orders: o, products: p}
	for _, opt := range opts {
		opt(w)
	}
	if w.sagas == nil {
		w.sagas = saga.NewOrchestrator(journal.NewMemory())
	}
	return w
}

// ListPending replaces the pending list. On failure the list is emptied and
// the error returned for display.
func (w *Workflow) ListPending(ctx context.Context) ([]orders.Order, error) {
	list, err := w.orders.ByStatus(ctx, orders.StatusPending)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.pending = nil
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	w.pending = list
	return append([]orders.Order(nil), list...), nil
}

// Filter searches the pending list by order id or requester name.
func (w *Workflow) Filter(query string) []orders.Order {
	w.mu.Lock()
	list := append([]orders.Order(nil), w.pending...)
	w.mu.Unlock()
	return search.Filter(list, query,
		func(o orders.Order) string { return search.ID(o.ID) },
		func(o orders.Order) string { return o.UserName },
	)
}

// OpenForm fetches the order and makes its form current. A failed fetch
// leaves the previous form in place.
func (w *Workflow) OpenForm(ctx context.Context, orderID int) (*Form, error) {
	o, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("open reception form for order %d: %w", orderID, err)
	}
	f := NewForm(o)
	w.mu.Lock()
	w.form = f
	w.mu.Unlock()
	return f, nil
}

// Form returns the open form.
func (w *Workflow) Form() (*Form, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form == nil {
		return nil, ErrNoForm
	}
	return w.form, nil
}

// Confirm validates every line, asks the operator, then applies the stock
// deltas and the status matching the disposition.
func (w *Workflow) Confirm(ctx context.Context, f *Form, c Confirmer) (Result, error) {
	lines, err := f.check()
	if err != nil {
		return Result{}, err
	}
	outcomes := make([]Outcome, 0, len(lines))
	for _, l := range lines {
		outcomes = append(outcomes, l.outcome)
	}
	disp := Decide(outcomes)
	if err := w.guard(f.Order, disp.Status()); err != nil {
		return Result{}, err
	}

	if c == nil {
		c = Confirmed
	}
	ok, err := c.Confirm(ctx, Prompt{OrderID: f.Order.ID, Disposition: disp, Message: disp.Prompt()})
	if err != nil {
		return Result{}, fmt.Errorf("confirm reception: %w", err)
	}
	if !ok {
		return Result{}, ErrCancelled
	}

	res, err := w.apply(ctx, f.Order, lines, disp.Status())
	res.Disposition = disp
	return res, err
}

// MarkIncomplete applies the typed quantities and closes the order as
// INCOMPLETE whatever they are.
func (w *Workflow) MarkIncomplete(ctx context.Context, f *Form) (Result, error) {
	lines, err := f.check()
	if err != nil {
		return Result{}, err
	}
	if err := w.guard(f.Order, orders.StatusIncomplete); err != nil {
		return Result{}, err
	}
	res, err := w.apply(ctx, f.Order, lines, orders.StatusIncomplete)
	res.Disposition = DispositionIncomplete
	return res, err
}

func (w *Workflow) guard(o orders.Order, to orders.Status) error {
	if !orders.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, o.ID, o.Status.Label())
	}
	return nil
}

func (w *Workflow) apply(ctx context.Context, o orders.Order, lines []LineState, status orders.Status) (Result, error) {
	if w.locker != nil {
		release, err := w.locker.Obtain(ctx, fmt.Sprintf("reception:%d", o.ID))
		if err != nil {
			return Result{OrderID: o.ID}, fmt.Errorf("lock order %d: %w", o.ID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Int("order_id", o.ID).Msg("release reception lock")
			}
		}()
	}

	// the form may be stale; another session can have received the order
	// between opening it and obtaining the lock
	current, err := w.orders.Get(ctx, o.ID)
	if err != nil {
		return Result{OrderID: o.ID}, fmt.Errorf("reload order %d: %w", o.ID, err)
	}
	if err := w.guard(current, status); err != nil {
		return Result{OrderID: o.ID, Status: current.Status}, err
	}

	p := plan{OrderID: o.ID, From: current.Status, Status: status, Reason: orders.ReasonReception}
	for _, l := range lines {
		p.Lines = append(p.Lines, planLine{ProductID: l.ProductID, Received: l.Received, UnitPrice: l.UnitPrice})
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Result{OrderID: o.ID}, fmt.Errorf("encode reception plan: %w", err)
	}

	sagaID := uuid.NewString()
	var updated orders.Order
	steps := w.steps(p, &updated)
	log.Info().Str("saga_id", sagaID).Int("order_id", o.ID).Str("status", string(status)).Int("steps", len(steps)).Msg("reception started")

	runErr := w.sagas.Run(ctx, sagaID, string(payload), steps)
	return w.finish(ctx, sagaID, p, steps, 0, &updated, runErr)
}

// finish publishes what changed and builds the result. from is the index
// the run started at, so a resumed run reports only its own deltas.
func (w *Workflow) finish(ctx context.Context, sagaID string, p plan, steps []saga.Step, from int, updated *orders.Order, runErr error) (Result, error) {
	res := Result{
		SagaID:        sagaID,
		OrderID:       p.OrderID,
		Status:        p.Status,
		ReceivedValue: p.receivedValue(),
	}

	applied := len(steps)
	var (
		se *saga.StepError
		je *saga.JournalError
	)
	switch {
	case errors.As(runErr, &se):
		applied = se.Index
	case errors.As(runErr, &je):
		applied = je.Applied
	case runErr != nil:
		applied = w.journaled(ctx, sagaID, from)
	}
	applied = min(max(applied, from), len(steps))
	res.Deltas = stepDeltas(steps[from:applied])
	if len(res.Deltas) > 0 {
		w.publish(ctx, events.ProductDataChanged, p.OrderID, orders.ProductDataChangedPayload{OrderID: p.OrderID, Deltas: res.Deltas, Reason: p.Reason})
	}

	if runErr != nil {
		log.Error().Err(runErr).Str("saga_id", sagaID).Int("order_id", p.OrderID).Int("applied_steps", applied).Msg("reception stopped")
		res.Status = p.From
		res.Message = runErr.Error()
		return res, runErr
	}

	if updated.ID != 0 {
		res.Order = updated
	}
	w.publish(ctx, events.OrderUpdated, p.OrderID, orders.OrderUpdatedPayload{OrderID: p.OrderID, From: p.From, To: p.Status, Reason: p.Reason})
	if p.Status == orders.StatusIncomplete {
		res.Message = fmt.Sprintf("Orden #%d marcada como incompleta", p.OrderID)
	} else {
		res.Message = fmt.Sprintf("Orden #%d confirmada y inventario actualizado", p.OrderID)
	}
	return res, nil
}

// journaled is the high-water mark the journal holds for sagaID, or from
// when it cannot be read.
func (w *Workflow) journaled(ctx context.Context, sagaID string, from int) int {
	e, err := w.sagas.State(context.WithoutCancel(ctx), sagaID)
	if err != nil || e == nil {
		return from
	}
	return e.HighWaterMark
}

func stepDeltas(steps []saga.Step) []orders.StockDelta {
	var out []orders.StockDelta
	idx := map[int]int{}
	for _, s := range steps {
		st, ok := s.(*stockStep)
		if !ok {
			continue
		}
		if i, seen := idx[st.productID]; seen {
			out[i].Quantity = out[i].Quantity.Add(st.qty)
			continue
		}
		idx[st.productID] = len(out)
		out = append(out, orders.StockDelta{ProductID: st.productID, Quantity: st.qty})
	}
	return out
}

// Resume continues a stopped reception from its journaled high-water mark.
func (w *Workflow) Resume(ctx context.Context, sagaID string) (Result, error) {
	p, err := w.plan(ctx, sagaID)
	if err != nil {
		return Result{SagaID: sagaID}, err
	}
	state, err := w.sagas.State(ctx, sagaID)
	if err != nil {
		return Result{SagaID: sagaID}, err
	}

	var updated orders.Order
	steps := w.steps(p, &updated)
	err = w.sagas.Resume(ctx, sagaID, func(string) ([]saga.Step, error) { return steps, nil })
	if errors.Is(err, saga.ErrAlreadyCompleted) || errors.Is(err, saga.ErrAlreadyCompensated) {
		return Result{SagaID: sagaID, OrderID: p.OrderID, Status: p.Status, Message: err.Error()}, err
	}
	from := min(state.HighWaterMark, len(steps))
	return w.finish(ctx, sagaID, p, steps, from, &updated, err)
}

// Compensate takes back the stock a stopped or finished reception added.
// The order status is left as it is.
func (w *Workflow) Compensate(ctx context.Context, sagaID string) (Result, error) {
	p, err := w.plan(ctx, sagaID)
	if err != nil {
		return Result{SagaID: sagaID}, err
	}
	state, err := w.sagas.State(ctx, sagaID)
	if err != nil {
		return Result{SagaID: sagaID}, err
	}

	steps := w.steps(p, nil)
	err = w.sagas.Compensate(ctx, sagaID, func(string) ([]saga.Step, error) { return steps, nil })
	res := Result{SagaID: sagaID, OrderID: p.OrderID, Status: p.From}
	if errors.Is(err, saga.ErrAlreadyCompensated) {
		res.Message = err.Error()
		return res, err
	}

	// steps in [done, hwm) were taken back by this call
	hwm := min(state.HighWaterMark, len(steps))
	done := 0
	if err != nil {
		done = hwm
		var se *saga.StepError
		if errors.As(err, &se) {
			done = min(se.Index, hwm)
		}
	}
	for _, d := range stepDeltas(steps[done:hwm]) {
		res.Deltas = append(res.Deltas, orders.StockDelta{ProductID: d.ProductID, Quantity: d.Quantity.Neg()})
	}
	if len(res.Deltas) > 0 {
		w.publish(ctx, events.ProductDataChanged, p.OrderID, orders.ProductDataChangedPayload{OrderID: p.OrderID, Deltas: res.Deltas, Reason: orders.ReasonSaga})
	}
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	res.Message = fmt.Sprintf("Recepción de la orden #%d revertida", p.OrderID)
	return res, nil
}

// Saga returns the journal state of a reception.
func (w *Workflow) Saga(ctx context.Context, sagaID string) (*journal.Entry, error) {
	return w.sagas.State(ctx, sagaID)
}

func (w *Workflow) plan(ctx context.Context, sagaID string) (plan, error) {
	payload, err := w.sagas.Payload(ctx, sagaID)
	if err != nil {
		return plan{}, err
	}
	return decodePlan(payload)
}

func (w *Workflow) publish(ctx context.Context, kind events.Kind, orderID int, payload any) {
	if w.bus == nil {
		return
	}
	if _, err := w.bus.Publish(ctx, kind, orders.EntityID(orderID), payload); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Int("order_id", orderID).Msg("publish reception event")
	}
}
