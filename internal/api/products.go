package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
)

const (
	DefaultProductPageSize = 50
	// FormProductPageSize is what the order and recipe forms load at once.
	FormProductPageSize = 500
)

type ProductsClient struct{ c *Client }

type productWrite struct {
	Name         string             `json:"name"`
	Type         orders.ProductType `json:"type"`
	Unit         orders.Unit        `json:"unit"`
	UnitPrice    decimal.Decimal    `json:"unitPrice"`
	ProductCode  string             `json:"productCode"`
	CurrentStock decimal.Decimal    `json:"currentStock"`
	MinimumStock decimal.Decimal    `json:"minimumStock"`
	SupplierID   *int               `json:"supplierId,omitempty"`
}

func toProductWrite(p orders.Product) productWrite {
	w := productWrite{
		Name:         p.Name,
		Type:         p.Type,
		Unit:         p.Unit,
		UnitPrice:    p.UnitPrice,
		ProductCode:  p.ProductCode,
		CurrentStock: p.CurrentStock,
		MinimumStock: p.MinimumStock,
	}
	if p.Supplier != nil {
		id := p.Supplier.ID
		w.SupplierID = &id
	}
	return w
}

// List fetches one page; size <= 0 means DefaultProductPageSize.
func (p *ProductsClient) List(ctx context.Context, page, size int) (Page[orders.Product], error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultProductPageSize
	}
	var out Page[orders.Product]
	err := p.c.do(ctx, http.MethodGet, "/api/products", pageQuery(page, size), nil, &out)
	return out, err
}

func (p *ProductsClient) Get(ctx context.Context, id int) (orders.Product, error) {
	var out orders.Product
	err := p.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, nil, &out)
	return out, err
}

func (p *ProductsClient) Create(ctx context.Context, in orders.Product) (orders.Product, error) {
	var out orders.Product
	err := p.c.do(ctx, http.MethodPost, "/api/products", nil, toProductWrite(in), &out)
	return out, err
}

// Update is a full replace: every writable field of in is sent.
func (p *ProductsClient) Update(ctx context.Context, id int, in orders.Product) (orders.Product, error) {
	var out orders.Product
	err := p.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/products/%d", id), nil, toProductWrite(in), &out)
	return out, err
}

func (p *ProductsClient) Delete(ctx context.Context, id int) error {
	return p.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/products/%d", id), nil, nil, nil)
}
