package history

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
)

// ErrUnsupportedScope is returned when the backend has no endpoint for the
// requested narrowing on that tab.
var ErrUnsupportedScope = errors.New("history: scope not available for this tab")

// Trails is the backend side of scoped loads and single records.
type Trails interface {
	Audits
	InventoryByID(ctx context.Context, id int) (api.InventoryAudit, error)
	InventoryByType(ctx context.Context, movementType string) ([]api.InventoryAudit, error)
	InventoryBetween(ctx context.Context, from, to time.Time) ([]api.InventoryAudit, error)
	RecipeAuditByID(ctx context.Context, id int) (api.RecipeAudit, error)
	RecipesByRecipe(ctx context.Context, recipeID int) ([]api.RecipeAudit, error)
	RecipesByUser(ctx context.Context, userID int) ([]api.RecipeAudit, error)
	RecipesBetween(ctx context.Context, from, to time.Time) ([]api.RecipeAudit, error)
	OrderAuditByID(ctx context.Context, id int) (api.OrderAudit, error)
	OrdersByOrder(ctx context.Context, orderID int) ([]api.OrderAudit, error)
	OrdersByUser(ctx context.Context, userID int) ([]api.OrderAudit, error)
	OrdersBetween(ctx context.Context, from, to time.Time) ([]api.OrderAudit, error)
}

var _ Trails = (*api.AuditsClient)(nil)

// Scope asks the backend for a narrower trail than the first page. At most
// one of EntityID, UserID, MovementType or the date range is used, in that
// order; Rows still applies the full Filter afterwards.
type Scope struct {
	EntityID     int
	UserID       int
	MovementType string
	From         time.Time
	To           time.Time
}

func (s Scope) IsZero() bool {
	return s.EntityID == 0 && s.UserID == 0 && (s.MovementType == "" || s.MovementType == AllTypes) &&
		s.From.IsZero() && s.To.IsZero()
}

func (v *Viewer) trails() (Trails, error) {
	t, ok := v.audits.(Trails)
	if !ok {
		return nil, ErrUnsupportedScope
	}
	return t, nil
}

// LoadScope replaces the records of tab with the scoped trail. The zero
// Scope behaves like Load, and so does a type or date scope when the
// backend cannot narrow, since Rows filters by those anyway.
func (v *Viewer) LoadScope(ctx context.Context, tab Tab, s Scope) error {
	if s.IsZero() {
		return v.Load(ctx, tab)
	}
	t, err := v.trails()
	if err != nil {
		if s.EntityID == 0 && s.UserID == 0 {
			return v.Load(ctx, tab)
		}
		return err
	}
	from, to := v.bounds(Filter{From: s.From, To: s.To})

	switch tab {
	case TabInventory:
		var list []api.InventoryAudit
		switch {
		case s.EntityID != 0, s.UserID != 0:
			return ErrUnsupportedScope
		case s.MovementType != "" && s.MovementType != AllTypes:
			list, err = t.InventoryByType(ctx, s.MovementType)
		default:
			list, err = t.InventoryBetween(ctx, from, to)
		}
		if err == nil {
			v.mu.Lock()
			v.inventory = list
			v.mu.Unlock()
		}
	case TabRecipes:
		var list []api.RecipeAudit
		switch {
		case s.EntityID != 0:
			list, err = t.RecipesByRecipe(ctx, s.EntityID)
		case s.UserID != 0:
			list, err = t.RecipesByUser(ctx, s.UserID)
		case s.MovementType != "" && s.MovementType != AllTypes:
			return ErrUnsupportedScope
		default:
			list, err = t.RecipesBetween(ctx, from, to)
		}
		if err == nil {
			v.mu.Lock()
			v.recipes = list
			v.mu.Unlock()
		}
	case TabOrders:
		var list []api.OrderAudit
		switch {
		case s.EntityID != 0:
			list, err = t.OrdersByOrder(ctx, s.EntityID)
		case s.UserID != 0:
			list, err = t.OrdersByUser(ctx, s.UserID)
		case s.MovementType != "" && s.MovementType != AllTypes:
			return ErrUnsupportedScope
		default:
			list, err = t.OrdersBetween(ctx, from, to)
		}
		if err == nil {
			v.mu.Lock()
			v.orders = list
			v.mu.Unlock()
		}
	default:
		return ErrUnsupportedScope
	}
	if err != nil {
		log.Error().Err(err).Str("tab", string(tab)).Msg("load scoped audit history")
		return &LoadError{Tab: tab, Err: err}
	}
	return nil
}

// Record fetches one audit record of tab.
func (v *Viewer) Record(ctx context.Context, tab Tab, id int) (Row, error) {
	t, err := v.trails()
	if err != nil {
		return Row{}, err
	}
	var row Row
	switch tab {
	case TabInventory:
		var a api.InventoryAudit
		if a, err = t.InventoryByID(ctx, id); err == nil {
			row = inventoryRow(a)
		}
	case TabRecipes:
		var a api.RecipeAudit
		if a, err = t.RecipeAuditByID(ctx, id); err == nil {
			row = recipeRow(a)
		}
	case TabOrders:
		var a api.OrderAudit
		if a, err = t.OrderAuditByID(ctx, id); err == nil {
			row = orderRow(a)
		}
	default:
		return Row{}, ErrUnsupportedScope
	}
	if err != nil {
		return Row{}, &LoadError{Tab: tab, Err: err}
	}
	return row, nil
}
