// Package recipes is the recipe board: listing, searching and editing
// recipes with their components and allergens.
package recipes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/search"
	"github.com/economato/go-order-desk/internal/validation"
)

type Recipes interface {
	List(ctx context.Context) ([]api.Recipe, error)
	Get(ctx context.Context, id int) (api.Recipe, error)
	Create(ctx context.Context, in api.RecipeRequest) (api.Recipe, error)
	Update(ctx context.Context, id int, in api.RecipeRequest) (api.Recipe, error)
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, name string) ([]api.Recipe, error)
	MaxCost(ctx context.Context, max decimal.Decimal) ([]api.Recipe, error)
}

type Allergens interface {
	List(ctx context.Context, page, size int) (api.Page[api.Allergen], error)
}

type Products interface {
	List(ctx context.Context, page, size int) (api.Page[orders.Product], error)
}

var (
	_ Recipes   = (*api.RecipesClient)(nil)
	_ Allergens = (*api.AllergensClient)(nil)
	_ Products  = (*api.ProductsClient)(nil)
)

const (
	SortCostAsc  = "cost-asc"
	SortCostDesc = "cost-desc"
)

// ActionError prefixes a backend failure with what the board was doing.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string { return e.Action + ": " + e.Err.Error() }
func (e *ActionError) Unwrap() error { return e.Err }

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

type ChangedPayload struct {
	RecipeID int    `json:"recipe_id"`
	Action   string `json:"action"`
}

// Query selects what the board lists. Name wins over MaxCost; with neither
// set every recipe is listed.
type Query struct {
	Name    string
	MaxCost decimal.NullDecimal
	Sort    string
}

type FormOptions struct {
	Allergens []api.Allergen   `json:"allergens"`
	Products  []orders.Product `json:"products"`
}

type Result struct {
	Recipe  api.Recipe `json:"recipe"`
	Message string     `json:"message"`
}

type Board struct {
	recipes   Recipes
	allergens Allergens
	products  Products
	bus       events.Publisher

	mu     sync.RWMutex
	prices map[int]decimal.Decimal
}

func New(r Recipes, a Allergens, p Products, bus events.Publisher) *Board {
	return &Board{recipes: r, allergens: a, products: p, bus: bus}
}

func (b *Board) List(ctx context.Context, q Query) ([]api.Recipe, error) {
	var (
		list []api.Recipe
		err  error
	)
	switch name := strings.TrimSpace(q.Name); {
	case name != "":
		list, err = b.recipes.Search(ctx, name)
		if err != nil {
			return nil, &ActionError{Action: "✗ Error al buscar recetas", Err: err}
		}
	case q.MaxCost.Valid:
		list, err = b.recipes.MaxCost(ctx, q.MaxCost.Decimal)
		if err != nil {
			return nil, &ActionError{Action: "✗ Error al filtrar recetas", Err: err}
		}
	default:
		list, err = b.recipes.List(ctx)
		if err != nil {
			return nil, &ActionError{Action: "Error al cargar recetas", Err: err}
		}
	}

	cost := func(r api.Recipe) search.Value { return search.Decimal(r.TotalCost) }
	switch q.Sort {
	case SortCostAsc:
		list = search.Sort(list, cost, search.Asc)
	case SortCostDesc:
		list = search.Sort(list, cost, search.Desc)
	}
	return list, nil
}

func (b *Board) Get(ctx context.Context, id int) (api.Recipe, error) {
	r, err := b.recipes.Get(ctx, id)
	if err != nil {
		return api.Recipe{}, &ActionError{Action: "Error al cargar la receta", Err: err}
	}
	return r, nil
}

// AllergenNames renders the allergen line of the detail view.
func AllergenNames(r api.Recipe) string {
	if len(r.Allergens) == 0 {
		return "Sin alérgenos"
	}
	names := make([]string, 0, len(r.Allergens))
	for _, a := range r.Allergens {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Options loads the form pick lists in parallel and remembers product
// prices for EstimateCost.
func (b *Board) Options(ctx context.Context) (FormOptions, error) {
	var (
		allergens api.Page[api.Allergen]
		products  api.Page[orders.Product]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allergens, err = b.allergens.List(gctx, 0, api.FormAllergenPageSize)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = b.products.List(gctx, 0, api.FormProductPageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return FormOptions{}, fmt.Errorf("load recipe form: %w", err)
	}

	prices := make(map[int]decimal.Decimal, len(products.Items))
	for _, p := range products.Items {
		prices[p.ID] = p.UnitPrice
	}
	b.mu.Lock()
	b.prices = prices
	b.mu.Unlock()
	return FormOptions{Allergens: allergens.Items, Products: products.Items}, nil
}

// EstimateCost sums quantity times unit price over the components whose
// product was loaded by Options.
func (b *Board) EstimateCost(in api.RecipeRequest) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := decimal.Zero
	for _, c := range in.Components {
		if price, ok := b.prices[c.ProductID]; ok {
			total = total.Add(c.Quantity.Mul(price))
		}
	}
	return total
}

// Save creates the recipe when id is 0 and replaces it otherwise. Input is
// validated before any call.
func (b *Board) Save(ctx context.Context, id int, in api.RecipeRequest) (Result, error) {
	if in.AllergenIDs == nil {
		in.AllergenIDs = []int{}
	}
	if in.Components == nil {
		in.Components = []api.ComponentRequest{}
	}
	if err := validation.Struct(in); err != nil {
		return Result{}, fmt.Errorf("recipe: %w", err)
	}

	var (
		r      api.Recipe
		err    error
		action = ActionUpdated
		msg    = "✓ Receta actualizada correctamente"
	)
	if id == 0 {
		action, msg = ActionCreated, "✓ Receta creada correctamente"
		r, err = b.recipes.Create(ctx, in)
	} else {
		r, err = b.recipes.Update(ctx, id, in)
	}
	if err != nil {
		return Result{}, &ActionError{Action: "✗ Error al guardar receta", Err: err}
	}
	b.publish(ctx, r.ID, action)
	log.Info().Int("recipe_id", r.ID).Str("action", action).Msg("recipe saved")
	return Result{Recipe: r, Message: msg}, nil
}

func (b *Board) Delete(ctx context.Context, id int) (string, error) {
	if err := b.recipes.Delete(ctx, id); err != nil {
		return "", &ActionError{Action: "✗ Error al eliminar receta", Err: err}
	}
	b.publish(ctx, id, ActionDeleted)
	log.Info().Int("recipe_id", id).Msg("recipe deleted")
	return "✓ Receta eliminada correctamente", nil
}

func (b *Board) publish(ctx context.Context, id int, action string) {
	if b.bus == nil {
		return
	}
	entity := fmt.Sprintf("recipe:%d", id)
	if _, err := b.bus.Publish(ctx, events.RecipeChanged, entity, ChangedPayload{RecipeID: id, Action: action}); err != nil {
		log.Warn().Err(err).Int("recipe_id", id).Msg("publish recipe change")
	}
}
