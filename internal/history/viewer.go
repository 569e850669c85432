// Package history is the read-only audit trail viewer: inventory
// movements, recipe changes and order changes.
package history

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/search"
)

// PageSize is how many audit records a tab loads.
const PageSize = 200

// AllTypes disables the movement type filter.
const AllTypes = "all"

type Tab string

const (
	TabInventory Tab = "inventory"
	TabRecipes   Tab = "recipes"
	TabOrders    Tab = "orders"
)

func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabInventory, TabRecipes, TabOrders:
		return t, true
	}
	return "", false
}

var loadMessages = map[Tab]string{
	TabInventory: "Error al cargar el historial de inventario",
	TabRecipes:   "Error al cargar el historial de recetas",
	TabOrders:    "Error al cargar el historial de órdenes",
}

type Audits interface {
	Inventory(ctx context.Context, page, size int) (api.Page[api.InventoryAudit], error)
	Recipes(ctx context.Context, page, size int) (api.Page[api.RecipeAudit], error)
	Orders(ctx context.Context, page, size int) (api.Page[api.OrderAudit], error)
}

var _ Audits = (*api.AuditsClient)(nil)

type LoadError struct {
	Tab Tab
	Err error
}

func (e *LoadError) Error() string { return loadMessages[e.Tab] }
func (e *LoadError) Unwrap() error { return e.Err }

// Row is one audit record as the table shows it, whatever its trail.
type Row struct {
	ID        int              `json:"id"`
	Subject   string           `json:"subject"`
	UserName  string           `json:"userName"`
	Type      string           `json:"type"`
	Quantity  string           `json:"quantity,omitempty"`
	Details   string           `json:"details,omitempty"`
	Date      orders.Timestamp `json:"date"`
	DateLabel string           `json:"dateLabel"`
	Diff      Diff             `json:"diff"`
}

// Filter narrows a loaded tab. Zero From means no lower bound; zero To
// means up to the end of today. A set To includes its whole day.
type Filter struct {
	Query        string
	MovementType string
	From         time.Time
	To           time.Time
}

type Viewer struct {
	audits Audits
	now    func() time.Time

	mu        sync.RWMutex
	inventory []api.InventoryAudit
	recipes   []api.RecipeAudit
	orders    []api.OrderAudit
}

func New(a Audits) *Viewer {
	return &Viewer{audits: a, now: time.Now}
}

// Load fetches the first PageSize records of tab, replacing what the tab
// held. A failure empties the tab.
func (v *Viewer) Load(ctx context.Context, tab Tab) error {
	var err error
	switch tab {
	case TabInventory:
		var p api.Page[api.InventoryAudit]
		p, err = v.audits.Inventory(ctx, 0, PageSize)
		v.mu.Lock()
		v.inventory = p.Items
		v.mu.Unlock()
	case TabRecipes:
		var p api.Page[api.RecipeAudit]
		p, err = v.audits.Recipes(ctx, 0, PageSize)
		v.mu.Lock()
		v.recipes = p.Items
		v.mu.Unlock()
	case TabOrders:
		var p api.Page[api.OrderAudit]
		p, err = v.audits.Orders(ctx, 0, PageSize)
		v.mu.Lock()
		v.orders = p.Items
		v.mu.Unlock()
	default:
		return fmt.Errorf("history: unknown tab %q", tab)
	}
	if err != nil {
		log.Error().Err(err).Str("tab", string(tab)).Msg("load audit history")
		return &LoadError{Tab: tab, Err: err}
	}
	return nil
}

// MovementTypes lists the movement types present in the inventory tab.
func (v *Viewer) MovementTypes() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, a := range v.inventory {
		if a.MovementType != "" && !seen[a.MovementType] {
			seen[a.MovementType] = true
			out = append(out, a.MovementType)
		}
	}
	return out
}

// Rows applies f to the loaded records of tab.
func (v *Viewer) Rows(tab Tab, f Filter) []Row {
	from, to := v.bounds(f)
	inRange := func(t orders.Timestamp) bool {
		return !t.Before(from) && !t.After(to)
	}
	undated := f.From.IsZero() && f.To.IsZero()

	v.mu.RLock()
	defer v.mu.RUnlock()
	var rows []Row
	switch tab {
	case TabInventory:
		list := search.Filter(v.inventory, f.Query,
			func(a api.InventoryAudit) string { return a.ProductName },
			func(a api.InventoryAudit) string { return a.UserName },
		)
		for _, a := range list {
			if f.MovementType != "" && f.MovementType != AllTypes && a.MovementType != f.MovementType {
				continue
			}
			if !undated && !inRange(a.MovementDate) {
				continue
			}
			rows = append(rows, inventoryRow(a))
		}
	case TabRecipes:
		list := search.Filter(v.recipes, f.Query,
			func(a api.RecipeAudit) string { return a.RecipeName },
			func(a api.RecipeAudit) string { return a.UserName },
		)
		for _, a := range list {
			if !undated && !inRange(a.Date) {
				continue
			}
			rows = append(rows, recipeRow(a))
		}
	case TabOrders:
		list := search.Filter(v.orders, f.Query,
			func(a api.OrderAudit) string {
				if a.OrderID == 0 {
					return ""
				}
				return search.ID(a.OrderID)
			},
			func(a api.OrderAudit) string { return a.UserName },
		)
		for _, a := range list {
			if !undated && !inRange(a.Date) {
				continue
			}
			rows = append(rows, orderRow(a))
		}
	}
	return rows
}

func inventoryRow(a api.InventoryAudit) Row {
	return Row{
		ID: a.ID, Subject: orNA(a.ProductName), UserName: orNA(a.UserName),
		Type: orNA(a.MovementType), Quantity: FormatQuantity(a.Quantity),
		Details: a.ActionDescription, Date: a.MovementDate, DateLabel: FormatDate(a.MovementDate),
		Diff: StateDiff(a.PreviousState, a.NewState),
	}
}

func recipeRow(a api.RecipeAudit) Row {
	return Row{
		ID: a.ID, Subject: orNA(a.RecipeName), UserName: orNA(a.UserName),
		Type: orNA(a.Action), Details: a.Details, Date: a.Date, DateLabel: FormatDate(a.Date),
		Diff: StateDiff(a.PreviousState, a.NewState),
	}
}

func orderRow(a api.OrderAudit) Row {
	subject := "#" + notAvailable
	if a.OrderID != 0 {
		subject = "#" + strconv.Itoa(a.OrderID)
	}
	return Row{
		ID: a.ID, Subject: subject, UserName: orNA(a.UserName),
		Type: orNA(a.Action), Details: a.Details, Date: a.Date, DateLabel: FormatDate(a.Date),
		Diff: StateDiff(a.PreviousState, a.NewState),
	}
}

func (v *Viewer) bounds(f Filter) (time.Time, time.Time) {
	from := f.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := f.To
	if to.IsZero() {
		to = v.now()
	}
	y, m, d := to.Date()
	to = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), to.Location())
	return from, to
}

// ParseDay reads a YYYY-MM-DD filter bound. Blank is the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: bad date %q: %w", s, err)
	}
	return t, nil
}

var shortMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}

// FormatDate renders t the way the desk shows dates, e.g. "1 mar 2025, 09:30".
func FormatDate(t orders.Timestamp) string {
	if t.IsZero() {
		return notAvailable
	}
	return fmt.Sprintf("%d %s %d, %02d:%02d", t.Day(), shortMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
