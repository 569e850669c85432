package orders

import "github.com/shopspring/decimal"

// Payloads carried by bus envelopes about orders and the stock they move.

type OrderCreatedPayload struct {
	OrderID   int             `json:"order_id"`
	UserID    int             `json:"user_id"`
	LineCount int             `json:"line_count"`
	Total     decimal.Decimal `json:"total"`
}

const (
	ReasonBoard     = "board"
	ReasonReception = "reception"
	ReasonSaga      = "saga"
)

type OrderUpdatedPayload struct {
	OrderID int    `json:"order_id"`
	From    Status `json:"from,omitempty"`
	To      Status `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

type StockDelta struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type ProductDataChangedPayload struct {
	OrderID int          `json:"order_id,omitempty"`
	Deltas  []StockDelta `json:"deltas,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}
