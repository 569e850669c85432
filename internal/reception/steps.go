package reception

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/saga"
)

// plan is the journaled input of a reception saga. Steps are rebuilt from it
// on resume and compensation.
type plan struct {
	OrderID int           `json:"order_id"`
	From    orders.Status `json:"from"`
	Status  orders.Status `json:"status"`
	Reason  string        `json:"reason"`
	Lines   []planLine    `json:"lines"`
}

type planLine struct {
	ProductID int             `json:"product_id"`
	Received  decimal.Decimal `json:"received"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func decodePlan(payload string) (plan, error) {
	var p plan
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return plan{}, fmt.Errorf("decode reception plan: %w", err)
	}
	return p, nil
}

// receivedValue is what the received goods are worth at the ordered unit
// prices. It is reported, never written back to the order.
func (p plan) receivedValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Received.Mul(l.UnitPrice))
	}
	return total
}

// stockStep adds one line's received quantity to the product's stock.
type stockStep struct {
	products  Products
	line      int
	productID int
	qty       decimal.Decimal
}

func (s *stockStep) Name() string { return fmt.Sprintf("stock:%d:%d", s.line, s.productID) }

func (s *stockStep) Execute(ctx context.Context) error { return s.adjust(ctx, s.qty) }

func (s *stockStep) Compensate(ctx context.Context) error { return s.adjust(ctx, s.qty.Neg()) }

func (s *stockStep) adjust(ctx context.Context, by decimal.Decimal) error {
	p, err := s.products.Get(ctx, s.productID)
	if err != nil {
		return fmt.Errorf("get product %d: %w", s.productID, err)
	}
	p.CurrentStock = p.CurrentStock.Add(by)
	if _, err := s.products.Update(ctx, s.productID, p); err != nil {
		return fmt.Errorf("update product %d stock: %w", s.productID, err)
	}
	return nil
}

// statusStep sets the order's terminal status. Terminal statuses have no
// way back, so it has nothing to compensate.
type statusStep struct {
	orders  Orders
	orderID int
	status  orders.Status
	result  *orders.Order
}

func (s *statusStep) Name() string { return "status:" + string(s.status) }

func (s *statusStep) Execute(ctx context.Context) error {
	o, err := s.orders.UpdateStatus(ctx, s.orderID, s.status)
	if err != nil {
		return fmt.Errorf("set order %d status %s: %w", s.orderID, s.status, err)
	}
	if s.result != nil {
		*s.result = o
	}
	return nil
}

func (s *statusStep) Compensate(context.Context) error { return nil }

// steps lays out one stock step per line with a positive received
// quantity, then the status step. Lines at zero make no call.
func (w *Workflow) steps(p plan, result *orders.Order) []saga.Step {
	out := make([]saga.Step, 0, len(p.Lines)+1)
	for i, l := range p.Lines {
		if !l.Received.IsPositive() {
			continue
		}
		out = append(out, &stockStep{products: w.products, line: i, productID: l.ProductID, qty: l.Received})
	}
	return append(out, &statusStep{orders: w.orders, orderID: p.OrderID, status: p.Status, result: result})
}
