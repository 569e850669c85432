package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
)

type OrdersClient struct{ c *Client }

// wire shapes: the backend names the line total "subtotal" and may send
// CONFIRMED for a completed order.
type wireLine struct {
	orders.Line
	Subtotal decimal.NullDecimal `json:"subtotal"`
}

type wireOrder struct {
	orders.Order
	Lines []wireLine `json:"details"`
}

func (w wireOrder) toOrder() orders.Order {
	o := w.Order
	o.Status = orders.ParseStatus(string(o.Status))
	o.Lines = make([]orders.Line, 0, len(w.Lines))
	for _, wl := range w.Lines {
		l := wl.Line
		if l.Price.IsZero() {
			if wl.Subtotal.Valid {
				l.Price = wl.Subtotal.Decimal
			} else {
				l.Price = l.Quantity.Mul(l.UnitPrice)
			}
		}
		o.Lines = append(o.Lines, l)
	}
	return o
}

func toOrders(ws []wireOrder) []orders.Order {
	out := make([]orders.Order, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toOrder())
	}
	return out
}

// ReceptionItem / Reception are the POST /api/orders/reception body.
type ReceptionItem struct {
	ProductID        int             `json:"productId"`
	QuantityReceived decimal.Decimal `json:"quantityReceived"`
}

type Reception struct {
	OrderID int             `json:"orderId"`
	Items   []ReceptionItem `json:"items"`
	Status  orders.Status   `json:"status"`
}

type orderWriteLine struct {
	ProductID int             `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type orderWrite struct {
	UserID  int              `json:"userId"`
	Status  orders.Status    `json:"status,omitempty"`
	Details []orderWriteLine `json:"details"`
}

func (o *OrdersClient) List(ctx context.Context) ([]orders.Order, error) {
	var p Page[wireOrder]
	if err := o.c.do(ctx, http.MethodGet, "/api/orders", nil, nil, &p); err != nil {
		return nil, err
	}
	return toOrders(p.Items), nil
}

func (o *OrdersClient) Page(ctx context.Context, page, size int) (Page[orders.Order], error) {
	var p Page[wireOrder]
	if err := o.c.do(ctx, http.MethodGet, "/api/orders", pageQuery(page, size), nil, &p); err != nil {
		return Page[orders.Order]{}, err
	}
	return mapPage(p, wireOrder.toOrder), nil
}

func (o *OrdersClient) Get(ctx context.Context, id int) (orders.Order, error) {
	var w wireOrder
	if err := o.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), nil, nil, &w); err != nil {
		return orders.Order{}, err
	}
	return w.toOrder(), nil
}

func (o *OrdersClient) Create(ctx context.Context, in orders.NewOrder) (orders.Order, error) {
	var w wireOrder
	if err := o.c.do(ctx, http.MethodPost, "/api/orders", nil, in, &w); err != nil {
		return orders.Order{}, err
	}
	return w.toOrder(), nil
}

// Update replaces the order. Only user, status and line quantities are sent.
func (o *OrdersClient) Update(ctx context.Context, id int, ord orders.Order) (orders.Order, error) {
	body := orderWrite{UserID: ord.UserID, Details: make([]orderWriteLine, 0, len(ord.Lines))}
	if ord.Status != "" {
		body.Status = o.c.wireStatus(ord.Status)
	}
	for _, l := range ord.Lines {
		body.Details = append(body.Details, orderWriteLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	var w wireOrder
	if err := o.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/orders/%d", id), nil, body, &w); err != nil {
		return orders.Order{}, err
	}
	return w.toOrder(), nil
}

func (o *OrdersClient) Delete(ctx context.Context, id int) error {
	return o.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/orders/%d", id), nil, nil, nil)
}

func (o *OrdersClient) ByStatus(ctx context.Context, s orders.Status) ([]orders.Order, error) {
	var p Page[wireOrder]
	path := "/api/orders/status/" + url.PathEscape(string(o.c.wireStatus(s)))
	if err := o.c.do(ctx, http.MethodGet, path, nil, nil, &p); err != nil {
		return nil, err
	}
	return toOrders(p.Items), nil
}

// PendingReception lists the orders the backend holds as awaiting reception.
func (o *OrdersClient) PendingReception(ctx context.Context) ([]orders.Order, error) {
	var p Page[wireOrder]
	if err := o.c.do(ctx, http.MethodGet, "/api/orders/reception/pending", nil, nil, &p); err != nil {
		return nil, err
	}
	return toOrders(p.Items), nil
}

// UpdateStatus PATCHes the status. A backend that answers 405 gets the
// whole order PUT back with the new status instead.
func (o *OrdersClient) UpdateStatus(ctx context.Context, id int, s orders.Status) (orders.Order, error) {
	body := map[string]orders.Status{"status": o.c.wireStatus(s)}
	var w wireOrder
	err := o.c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), nil, body, &w)
	if err == nil {
		if w.ID == 0 {
			return o.Get(ctx, id)
		}
		return w.toOrder(), nil
	}
	if StatusOf(err) != http.StatusMethodNotAllowed {
		return orders.Order{}, err
	}

	current, err := o.Get(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	current.Status = s
	return o.Update(ctx, id, current)
}

func (o *OrdersClient) SubmitReception(ctx context.Context, r Reception) (orders.Order, error) {
	r.Status = o.c.wireStatus(r.Status)
	var w wireOrder
	if err := o.c.do(ctx, http.MethodPost, "/api/orders/reception", nil, r, &w); err != nil {
		return orders.Order{}, err
	}
	return w.toOrder(), nil
}
