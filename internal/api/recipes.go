package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

type Allergen struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type RecipeComponent struct {
	ID          int             `json:"id,omitempty"`
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Recipe struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	Elaboration  string            `json:"elaboration"`
	Presentation string            `json:"presentation"`
	TotalCost    decimal.Decimal   `json:"totalCost"`
	Components   []RecipeComponent `json:"components"`
	Allergens    []Allergen        `json:"allergens"`
}

// RecipeRequest is the create/update body. The tags mirror the backend's
// own constraints so bad input never leaves the desk.
type RecipeRequest struct {
	Name         string             `json:"name" validate:"required,min=2,max=150"`
	Elaboration  string             `json:"elaboration" validate:"required,max=2000"`
	Presentation string             `json:"presentation" validate:"required,max=1000"`
	Components   []ComponentRequest `json:"components" validate:"dive"`
	AllergenIDs  []int              `json:"allergenIds"`
}

type ComponentRequest struct {
	ProductID int             `json:"productId" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gte=0.001"`
}

// components may arrive flat or with a nested product projection
type wireComponent struct {
	RecipeComponent
	Product *struct {
		ID        int             `json:"id"`
		Name      string          `json:"name"`
		UnitPrice decimal.Decimal `json:"unitPrice"`
	} `json:"product"`
}

type wireRecipe struct {
	Recipe
	Components []wireComponent `json:"components"`
}

func (w wireRecipe) toRecipe() Recipe {
	r := w.Recipe
	r.Components = make([]RecipeComponent, 0, len(w.Components))
	for _, wc := range w.Components {
		c := wc.RecipeComponent
		if wc.Product != nil {
			if c.ProductID == 0 {
				c.ProductID = wc.Product.ID
			}
			if c.ProductName == "" {
				c.ProductName = wc.Product.Name
			}
			if c.Subtotal.IsZero() {
				c.Subtotal = c.Quantity.Mul(wc.Product.UnitPrice)
			}
		}
		r.Components = append(r.Components, c)
	}
	return r
}

func toRecipes(ws []wireRecipe) []Recipe {
	out := make([]Recipe, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toRecipe())
	}
	return out
}

type RecipesClient struct{ c *Client }

func (r *RecipesClient) List(ctx context.Context) ([]Recipe, error) {
	var p Page[wireRecipe]
	if err := r.c.do(ctx, http.MethodGet, "/api/recipes", nil, nil, &p); err != nil {
		return nil, err
	}
	return toRecipes(p.Items), nil
}

func (r *RecipesClient) Get(ctx context.Context, id int) (Recipe, error) {
	var w wireRecipe
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/recipes/%d", id), nil, nil, &w); err != nil {
		return Recipe{}, err
	}
	return w.toRecipe(), nil
}

func (r *RecipesClient) Create(ctx context.Context, in RecipeRequest) (Recipe, error) {
	var w wireRecipe
	if err := r.c.do(ctx, http.MethodPost, "/api/recipes", nil, in, &w); err != nil {
		return Recipe{}, err
	}
	return w.toRecipe(), nil
}

func (r *RecipesClient) Update(ctx context.Context, id int, in RecipeRequest) (Recipe, error) {
	var w wireRecipe
	if err := r.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/recipes/%d", id), nil, in, &w); err != nil {
		return Recipe{}, err
	}
	return w.toRecipe(), nil
}

func (r *RecipesClient) Delete(ctx context.Context, id int) error {
	return r.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/recipes/%d", id), nil, nil, nil)
}

func (r *RecipesClient) Search(ctx context.Context, name string) ([]Recipe, error) {
	var p Page[wireRecipe]
	q := url.Values{"name": {name}}
	if err := r.c.do(ctx, http.MethodGet, "/api/recipes/search", q, nil, &p); err != nil {
		return nil, err
	}
	return toRecipes(p.Items), nil
}

func (r *RecipesClient) MaxCost(ctx context.Context, max decimal.Decimal) ([]Recipe, error) {
	var p Page[wireRecipe]
	q := url.Values{"maxCost": {max.String()}}
	if err := r.c.do(ctx, http.MethodGet, "/api/recipes/maxcost", q, nil, &p); err != nil {
		return nil, err
	}
	return toRecipes(p.Items), nil
}

type AllergensClient struct{ c *Client }

const FormAllergenPageSize = 100

func (a *AllergensClient) List(ctx context.Context, page, size int) (Page[Allergen], error) {
	if size <= 0 {
		size = FormAllergenPageSize
	}
	var out Page[Allergen]
	err := a.c.do(ctx, http.MethodGet, "/api/allergens", pageQuery(page, size), nil, &out)
	return out, err
}
