package orders

import (
	"github.com/shopspring/decimal"
)

type ProductType string

const (
	TypeIngredient ProductType = "Ingrediente"
	TypeProduct    ProductType = "Producto"
	TypeDrink      ProductType = "Bebida"
	TypeOther      ProductType = "Otro"
)

type Unit string

const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLitre      Unit = "l"
	UnitMillilitre Unit = "ml"
	UnitPiece      Unit = "unidad"
)

type Supplier struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Type         ProductType     `json:"type"`
	ProductCode  string          `json:"productCode"`
	CurrentStock decimal.Decimal `json:"currentStock"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
	Unit         Unit            `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Supplier     *Supplier       `json:"supplier,omitempty"`
}

type Order struct {
	ID         int             `json:"id"`
	UserID     int             `json:"userId"`
	UserName   string          `json:"userName"`
	OrderDate  Timestamp       `json:"orderDate"`
	Status     Status          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Lines      []Line          `json:"details"`
}

// Line is one product entry of an order. Lines are never edited after the
// order is created; reception only touches product stock and order status.
type Line struct {
	ProductID        int                 `json:"productId"`
	ProductName      string              `json:"productName"`
	ProductType      string              `json:"productType,omitempty"`
	Quantity         decimal.Decimal     `json:"quantity"`
	QuantityReceived decimal.NullDecimal `json:"quantityReceived"`
	UnitPrice        decimal.Decimal     `json:"unitPrice"`
	Price            decimal.Decimal     `json:"price"`
}

// LinesTotal sums line prices. It equals TotalPrice for an order as created.
func (o Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Price)
	}
	return total
}

const DefaultFacet = "General"

// Facet is the display grouping of an order, taken from its first line's
// product type. It is derived, not stored.
func (o Order) Facet() string {
	if len(o.Lines) > 0 && o.Lines[0].ProductType != "" {
		return o.Lines[0].ProductType
	}
	return DefaultFacet
}

// NewOrder is the creation request body.
type NewOrder struct {
	UserID int       `json:"userId"`
	Lines  []NewLine `json:"details"`
}

type NewLine struct {
	ProductID int             `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}
