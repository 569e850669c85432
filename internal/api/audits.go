package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
)

const DefaultAuditPageSize = 100

type InventoryAudit struct {
	ID                int                 `json:"id"`
	ProductID         int                 `json:"productId"`
	ProductName       string              `json:"productName"`
	UserID            int                 `json:"userId"`
	UserName          string              `json:"userName"`
	MovementType      string              `json:"movementType"`
	Quantity          decimal.NullDecimal `json:"quantity"`
	ActionDescription string              `json:"actionDescription"`
	PreviousState     string              `json:"previousState"`
	NewState          string              `json:"newState"`
	MovementDate      orders.Timestamp    `json:"movementDate"`
}

type RecipeAudit struct {
	ID            int              `json:"id"`
	RecipeID      int              `json:"recipeId"`
	RecipeName    string           `json:"recipeName"`
	UserID        int              `json:"userId"`
	UserName      string           `json:"userName"`
	Action        string           `json:"action"`
	Details       string           `json:"details"`
	PreviousState string           `json:"previousState"`
	NewState      string           `json:"newState"`
	Date          orders.Timestamp `json:"date"`
}

type OrderAudit struct {
	ID            int              `json:"id"`
	OrderID       int              `json:"orderId"`
	UserID        int              `json:"userId"`
	UserName      string           `json:"userName"`
	Action        string           `json:"action"`
	Details       string           `json:"details"`
	PreviousState string           `json:"previousState"`
	NewState      string           `json:"newState"`
	Date          orders.Timestamp `json:"date"`
}

type ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// The audit endpoints disagree on naming between flat DTOs and nested
// projections; each wire type folds the variants into one record.

type wireInventoryAudit struct {
	InventoryAudit
	Product *ref `json:"product"`
	User    *ref `json:"user"`
}

func (w wireInventoryAudit) normalize() InventoryAudit {
	a := w.InventoryAudit
	if w.Product != nil {
		a.ProductID, a.ProductName = pick(a.ProductID, w.Product.ID), pickS(a.ProductName, w.Product.Name)
	}
	if w.User != nil {
		a.UserID, a.UserName = pick(a.UserID, w.User.ID), pickS(a.UserName, w.User.Name)
	}
	return a
}

type wireRecipeAudit struct {
	RecipeAudit
	LegacyRecipeID int              `json:"id_recipe"`
	LegacyUserID   int              `json:"id_user"`
	ActionType     string           `json:"actionType"`
	ActionDate     orders.Timestamp `json:"actionDate"`
	AuditDate      orders.Timestamp `json:"auditDate"`
	Recipe         *ref             `json:"recipe"`
	User           *ref             `json:"user"`
}

func (w wireRecipeAudit) normalize() RecipeAudit {
	a := w.RecipeAudit
	a.RecipeID = pick(a.RecipeID, w.LegacyRecipeID)
	a.UserID = pick(a.UserID, w.LegacyUserID)
	a.Action = pickS(a.Action, w.ActionType)
	if a.Date.IsZero() {
		a.Date = w.ActionDate
	}
	if a.Date.IsZero() {
		a.Date = w.AuditDate
	}
	if w.Recipe != nil {
		a.RecipeID, a.RecipeName = pick(a.RecipeID, w.Recipe.ID), pickS(a.RecipeName, w.Recipe.Name)
	}
	if w.User != nil {
		a.UserID, a.UserName = pick(a.UserID, w.User.ID), pickS(a.UserName, w.User.Name)
	}
	return a
}

type wireOrderAudit struct {
	OrderAudit
	AuditDate orders.Timestamp `json:"auditDate"`
	Order     *ref             `json:"order"`
	User      *ref             `json:"user"`
	Users     *ref             `json:"users"`
}

func (w wireOrderAudit) normalize() OrderAudit {
	a := w.OrderAudit
	if a.Date.IsZero() {
		a.Date = w.AuditDate
	}
	if w.Order != nil {
		a.OrderID = pick(a.OrderID, w.Order.ID)
	}
	for _, u := range []*ref{w.User, w.Users} {
		if u != nil {
			a.UserID, a.UserName = pick(a.UserID, u.ID), pickS(a.UserName, u.Name)
		}
	}
	return a
}

func pick(cur, alt int) int {
	if cur != 0 {
		return cur
	}
	return alt
}

func pickS(cur, alt string) string {
	if cur != "" {
		return cur
	}
	return alt
}

func normalizeAll[W interface{ normalize() T }, T any](ws []W) []T {
	out := make([]T, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out
}

func dateRange(from, to time.Time) url.Values {
	const layout = "2006-01-02T15:04:05"
	return url.Values{"start": {from.Format(layout)}, "end": {to.Format(layout)}}
}

// auditResource holds the shared endpoint shapes of one audit trail.
type auditResource[W interface{ normalize() T }, T any] struct {
	c    *Client
	base string
}

func (r auditResource[W, T]) page(ctx context.Context, page, size int) (Page[T], error) {
	if size <= 0 {
		size = DefaultAuditPageSize
	}
	var p Page[W]
	if err := r.c.do(ctx, http.MethodGet, r.base, pageQuery(page, size), nil, &p); err != nil {
		return Page[T]{}, err
	}
	return mapPage(p, func(w W) T { return w.normalize() }), nil
}

func (r auditResource[W, T]) get(ctx context.Context, id int) (T, error) {
	var w W
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", r.base, id), nil, nil, &w); err != nil {
		var zero T
		return zero, err
	}
	return w.normalize(), nil
}

func (r auditResource[W, T]) list(ctx context.Context, sub string, q url.Values) ([]T, error) {
	var p Page[W]
	if err := r.c.do(ctx, http.MethodGet, r.base+sub, q, nil, &p); err != nil {
		return nil, err
	}
	return normalizeAll[W, T](p.Items), nil
}

type AuditsClient struct{ c *Client }

func (a *AuditsClient) inventory() auditResource[wireInventoryAudit, InventoryAudit] {
	return auditResource[wireInventoryAudit, InventoryAudit]{c: a.c, base: "/api/inventory-audits"}
}

func (a *AuditsClient) recipes() auditResource[wireRecipeAudit, RecipeAudit] {
	return auditResource[wireRecipeAudit, RecipeAudit]{c: a.c, base: "/api/recipe-audits"}
}

func (a *AuditsClient) orders() auditResource[wireOrderAudit, OrderAudit] {
	return auditResource[wireOrderAudit, OrderAudit]{c: a.c, base: "/api/order-audits"}
}

func (a *AuditsClient) Inventory(ctx context.Context, page, size int) (Page[InventoryAudit], error) {
	return a.inventory().page(ctx, page, size)
}

func (a *AuditsClient) InventoryByID(ctx context.Context, id int) (InventoryAudit, error) {
	return a.inventory().get(ctx, id)
}

func (a *AuditsClient) InventoryByType(ctx context.Context, movementType string) ([]InventoryAudit, error) {
	return a.inventory().list(ctx, "/type/"+url.PathEscape(movementType), nil)
}

func (a *AuditsClient) InventoryBetween(ctx context.Context, from, to time.Time) ([]InventoryAudit, error) {
	return a.inventory().list(ctx, "/by-date-range", dateRange(from, to))
}

func (a *AuditsClient) Recipes(ctx context.Context, page, size int) (Page[RecipeAudit], error) {
	return a.recipes().page(ctx, page, size)
}

func (a *AuditsClient) RecipeAuditByID(ctx context.Context, id int) (RecipeAudit, error) {
	return a.recipes().get(ctx, id)
}

func (a *AuditsClient) RecipesByRecipe(ctx context.Context, recipeID int) ([]RecipeAudit, error) {
	return a.recipes().list(ctx, fmt.Sprintf("/by-recipe/%d", recipeID), nil)
}

func (a *AuditsClient) RecipesByUser(ctx context.Context, userID int) ([]RecipeAudit, error) {
	return a.recipes().list(ctx, fmt.Sprintf("/by-user/%d", userID), nil)
}

func (a *AuditsClient) RecipesBetween(ctx context.Context, from, to time.Time) ([]RecipeAudit, error) {
	return a.recipes().list(ctx, "/by-date-range", dateRange(from, to))
}

func (a *AuditsClient) Orders(ctx context.Context, page, size int) (Page[OrderAudit], error) {
	return a.orders().page(ctx, page, size)
}

func (a *AuditsClient) OrderAuditByID(ctx context.Context, id int) (OrderAudit, error) {
	return a.orders().get(ctx, id)
}

func (a *AuditsClient) OrdersByOrder(ctx context.Context, orderID int) ([]OrderAudit, error) {
	return a.orders().list(ctx, fmt.Sprintf("/by-order/%d", orderID), nil)
}

func (a *AuditsClient) OrdersByUser(ctx context.Context, userID int) ([]OrderAudit, error) {
	return a.orders().list(ctx, fmt.Sprintf("/by-user/%d", userID), nil)
}

func (a *AuditsClient) OrdersBetween(ctx context.Context, from, to time.Time) ([]OrderAudit, error) {
	return a.orders().list(ctx, "/by-date-range", dateRange(from, to))
}
