// Package board is the order board: every order grouped by type and status,
// with the next action each one allows.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/search"
)

// AllTypes is the facet value that disables the type filter.
const AllTypes = "all"

type Source interface {
	List(ctx context.Context) ([]orders.Order, error)
	Get(ctx context.Context, id int) (orders.Order, error)
	UpdateStatus(ctx context.Context, id int, s orders.Status) (orders.Order, error)
}

// Cache holds the last fetched order list between requests.
type Cache interface {
	Load(ctx context.Context) ([]orders.Order, bool, error)
	Store(ctx context.Context, list []orders.Order) error
	Invalidate(ctx context.Context) error
}

var (
	ErrActionNotAllowed = errors.New("board: action not offered for this order")
	// ErrOpensReception is returned for the review action, which is handled
	// by the reception workflow rather than by a status change.
	ErrOpensReception = errors.New("board: review opens the reception form")
)

type Board struct {
	src   Source
	bus   events.Publisher
	cache Cache

	mu    sync.RWMutex
	all   []orders.Order
	query string
	facet string
	err   error
}

func New(src Source, bus events.Publisher, cache Cache) *Board {
	return &Board{src: src, bus: bus, cache: cache, facet: AllTypes}
}

// Load fetches every order, from the cache when it holds a list. A failure
// is kept for View and also returned.
func (b *Board) Load(ctx context.Context) error {
	list, err := b.fetch(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	if err != nil {
		b.all = nil
		return err
	}
	b.all = list
	return nil
}

func (b *Board) fetch(ctx context.Context) ([]orders.Order, error) {
	if b.cache != nil {
		list, ok, err := b.cache.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("board cache read failed")
		}
		if ok {
			return list, nil
		}
	}
	list, err := b.src.List(ctx)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		if err := b.cache.Store(ctx, list); err != nil {
			log.Warn().Err(err).Msg("board cache write failed")
		}
	}
	return list, nil
}

func (b *Board) SetQuery(q string) {
	b.mu.Lock()
	b.query = q
	b.mu.Unlock()
}

// SetFacet selects a type; "" and AllTypes clear the filter.
func (b *Board) SetFacet(f string) {
	if f == "" {
		f = AllTypes
	}
	b.mu.Lock()
	b.facet = f
	b.mu.Unlock()
}

// Filtered applies the search text and the facet to the loaded orders.
func (b *Board) Filtered() []orders.Order {
	b.mu.RLock()
	all, q, facet := b.all, b.query, b.facet
	b.mu.RUnlock()

	out := search.Filter(all, q,
		func(o orders.Order) string { return search.ID(o.ID) },
		func(o orders.Order) string { return o.UserName },
	)
	if facet == AllTypes {
		return out
	}
	kept := make([]orders.Order, 0, len(out))
	for _, o := range out {
		if o.Facet() == facet {
			kept = append(kept, o)
		}
	}
	return kept
}

type TypeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Card is one order as the board shows it.
type Card struct {
	ID          int               `json:"id"`
	UserName    string            `json:"userName"`
	Initials    string            `json:"initials"`
	OrderDate   orders.Timestamp  `json:"orderDate"`
	Facet       string            `json:"type"`
	Status      orders.Status     `json:"status"`
	StatusLabel string            `json:"statusLabel"`
	StatusClass string            `json:"statusClass"`
	Items       int               `json:"items"`
	Total       decimal.Decimal   `json:"total"`
	TotalLabel  string            `json:"totalLabel"`
	Next        orders.NextAction `json:"next"`
}

type Group struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Cards  []Card `json:"cards"`
}

type View struct {
	Groups []Group      `json:"groups"`
	Types  []TypeOption `json:"types"`
	Facet  string       `json:"facet"`
	Query  string       `json:"query"`
	Error  string       `json:"error,omitempty"`
	Empty  bool         `json:"empty"`
}

func NewCard(o orders.Order) Card {
	return Card{
		ID:          o.ID,
		UserName:    o.UserName,
		Initials:    initials(o.UserName),
		OrderDate:   o.OrderDate,
		Facet:       o.Facet(),
		Status:      o.Status,
		StatusLabel: o.Status.Label(),
		StatusClass: o.Status.Class(),
		Items:       len(o.Lines),
		Total:       o.TotalPrice,
		TotalLabel:  "€" + o.TotalPrice.StringFixed(2),
		Next:        orders.NextActionFor(o.Status),
	}
}

func initials(name string) string {
	if name == "" {
		return "U"
	}
	r := []rune(name)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// Types lists the distinct facets of the loaded orders in first-seen order.
func (b *Board) Types() []TypeOption {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[string]bool{}
	var out []TypeOption
	for _, o := range b.all {
		f := o.Facet()
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, TypeOption{Value: f, Label: capitalize(f)})
	}
	return out
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// Groups buckets the filtered orders by "type - status label", in the
// order each bucket first appears.
func Groups(list []orders.Order) []Group {
	idx := map[string]int{}
	var out []Group
	for _, o := range list {
		facet, label := o.Facet(), o.Status.Label()
		key := facet + " - " + label
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, Group{Key: key, Type: facet, Status: label})
		}
		out[i].Cards = append(out[i].Cards, NewCard(o))
	}
	return out
}

func (b *Board) View() View {
	filtered := b.Filtered()
	b.mu.RLock()
	v := View{Facet: b.facet, Query: b.query}
	if b.err != nil {
		v.Error = b.err.Error()
	}
	b.mu.RUnlock()
	v.Types = b.Types()
	v.Groups = Groups(filtered)
	v.Empty = len(filtered) == 0
	return v
}

// ActionResult is what a board button did.
type ActionResult struct {
	Order   orders.Order `json:"order"`
	Message string       `json:"message"`
}

var actionMessages = map[orders.ActionKind]string{
	orders.ActionMarkReceived:   "✓ Orden marcada como recibida",
	orders.ActionComplete:       "✓ Orden completada exitosamente",
	orders.ActionMarkIncomplete: "✓ Orden marcada como incompleta",
}

// Act runs a board button against the order's current status. Complete and
// mark-incomplete set the status directly and move no stock.
func (b *Board) Act(ctx context.Context, orderID int, kind orders.ActionKind) (ActionResult, error) {
	cur, err := b.src.Get(ctx, orderID)
	if err != nil {
		return ActionResult{}, err
	}
	action, ok := orders.NextActionFor(cur.Status).Allows(kind)
	if !ok {
		return ActionResult{}, fmt.Errorf("%w: %s on %s order %d", ErrActionNotAllowed, kind, cur.Status.Label(), orderID)
	}
	if action.Target == "" {
		return ActionResult{}, ErrOpensReception
	}

	updated, err := b.src.UpdateStatus(ctx, orderID, action.Target)
	if err != nil {
		return ActionResult{}, err
	}
	if b.cache != nil {
		if err := b.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("board cache invalidate failed")
		}
	}
	if b.bus != nil {
		_, err := b.bus.Publish(ctx, events.OrderUpdated, orders.EntityID(orderID), orders.OrderUpdatedPayload{
			OrderID: orderID, From: cur.Status, To: action.Target, Reason: orders.ReasonBoard,
		})
		if err != nil {
			log.Warn().Err(err).Int("order_id", orderID).Msg("publish board update")
		}
	}
	log.Info().Int("order_id", orderID).Str("action", string(kind)).Str("to", string(action.Target)).Msg("board action applied")
	return ActionResult{Order: updated, Message: actionMessages[kind]}, nil
}

// Detail is the order detail view.
type Detail struct {
	Card
	Lines []DetailLine `json:"lines"`
}

type DetailLine struct {
	ProductID   int                 `json:"productId"`
	ProductName string              `json:"productName"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Received    decimal.NullDecimal `json:"received"`
	UnitPrice   decimal.Decimal     `json:"unitPrice"`
	Price       decimal.Decimal     `json:"price"`
}

func (b *Board) Detail(ctx context.Context, orderID int) (Detail, error) {
	o, err := b.src.Get(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Card: NewCard(o)}
	for _, l := range o.Lines {
		d.Lines = append(d.Lines, DetailLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Received:    l.QuantityReceived,
			UnitPrice:   l.UnitPrice,
			Price:       l.Price,
		})
	}
	return d, nil
}

// InvalidateOn drops the cached list whenever an order is created or
// updated anywhere, so the next Load re-fetches.
func InvalidateOn(ctx context.Context, bus *events.Bus, cache Cache) {
	bus.Listen(ctx, func(ctx context.Context, env events.Envelope) {
		if err := cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Str("kind", string(env.Kind)).Msg("board cache invalidate failed")
		}
	}, events.OrderCreated, events.OrderUpdated)
}
