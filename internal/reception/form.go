package reception

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
)

// Outcome compares a line's received quantity with the requested one.
type Outcome int

const (
	Shortfall Outcome = iota
	Exact
	Surplus
)

// ValidateLine classifies received against requested.
func ValidateLine(requested, received decimal.Decimal) Outcome {
	switch received.Cmp(requested) {
	case -1:
		return Shortfall
	case 0:
		return Exact
	default:
		return Surplus
	}
}

func (o Outcome) String() string {
	switch o {
	case Shortfall:
		return "shortfall"
	case Exact:
		return "exact"
	default:
		return "surplus"
	}
}

// Indicator is the per-line mark: a cross for a shortfall, a tick otherwise.
func (o Outcome) Indicator() string {
	if o == Shortfall {
		return "✗"
	}
	return "✓"
}

// Record is one line of the reception form. Input is what the operator
// typed; it starts as the requested quantity.
type Record struct {
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName"`
	Requested   decimal.Decimal `json:"requested"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Input       string          `json:"input"`
}

// Form is the reconciliation form of one order.
type Form struct {
	Order   orders.Order `json:"order"`
	Records []Record     `json:"records"`
}

var (
	ErrUnknownLine      = errors.New("reception: no such line in the order")
	ErrAmbiguousProduct = errors.New("reception: product appears on more than one line")
)

func NewForm(o orders.Order) *Form {
	f := &Form{Order: o, Records: make([]Record, 0, len(o.Lines))}
	for _, l := range o.Lines {
		f.Records = append(f.Records, Record{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Requested:   l.Quantity,
			UnitPrice:   l.UnitPrice,
			Input:       l.Quantity.String(),
		})
	}
	return f
}

// SetReceived replaces the input of line i.
func (f *Form) SetReceived(i int, input string) error {
	if i < 0 || i >= len(f.Records) {
		return fmt.Errorf("%w: %d", ErrUnknownLine, i)
	}
	f.Records[i].Input = input
	return nil
}

// SetProduct replaces the input of the one line of productID. A product
// ordered on several lines must be set by line index.
func (f *Form) SetProduct(productID int, input string) error {
	at := -1
	for i := range f.Records {
		if f.Records[i].ProductID != productID {
			continue
		}
		if at >= 0 {
			return fmt.Errorf("%w: product %d is on lines %d and %d", ErrAmbiguousProduct, productID, at, i)
		}
		at = i
	}
	if at < 0 {
		return fmt.Errorf("%w: product %d", ErrUnknownLine, productID)
	}
	f.Records[at].Input = input
	return nil
}

// LineState is a record as the form shows it.
type LineState struct {
	Record
	Received  decimal.Decimal `json:"received"`
	Valid     bool            `json:"valid"`
	Outcome   string          `json:"outcome,omitempty"`
	Indicator string          `json:"indicator,omitempty"`
	Message   string          `json:"message"`

	outcome Outcome
}

func (l LineState) Result() Outcome { return l.outcome }

// parseQuantity accepts a decimal comma. Blank, unparseable and negative
// input is rejected.
func parseQuantity(input string) (decimal.Decimal, string) {
	s := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	if s == "" {
		return decimal.Zero, "Cantidad no válida"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, "Cantidad no válida"
	}
	if d.IsNegative() {
		return decimal.Zero, "La cantidad no puede ser negativa"
	}
	return d, ""
}

func (f *Form) Lines() []LineState {
	out := make([]LineState, 0, len(f.Records))
	for _, r := range f.Records {
		ls := LineState{Record: r}
		d, reason := parseQuantity(r.Input)
		if reason != "" {
			ls.Message = reason
			out = append(out, ls)
			continue
		}
		ls.Valid = true
		ls.Received = d
		ls.outcome = ValidateLine(r.Requested, d)
		ls.Outcome = ls.outcome.String()
		ls.Indicator = ls.outcome.Indicator()
		switch ls.outcome {
		case Shortfall:
			ls.Message = "Mínimo requerido: " + r.Requested.String()
		case Exact:
			ls.Message = "✓ Correcto"
		default:
			ls.Message = "✓ Recepción completa"
		}
		out = append(out, ls)
	}
	return out
}

// AllEqual reports whether every line was received exactly as requested.
// It only drives the form banner.
func (f *Form) AllEqual() bool {
	for _, l := range f.Lines() {
		if !l.Valid || l.outcome != Exact {
			return false
		}
	}
	return true
}

// LineError names one line that blocks submission.
type LineError struct {
	Index       int    `json:"index"`
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	Input       string `json:"input"`
	Reason      string `json:"reason"`
}

// ValidationError blocks the whole submission; nothing is sent.
type ValidationError struct {
	Lines []LineError
}

func (e *ValidationError) Error() string {
	return "Hay errores en las cantidades. Revisa cada producto."
}

// check parses every line, all or nothing.
func (f *Form) check() ([]LineState, error) {
	lines := f.Lines()
	var bad []LineError
	for i, l := range lines {
		if !l.Valid {
			bad = append(bad, LineError{Index: i, ProductID: l.ProductID, ProductName: l.ProductName, Input: l.Input, Reason: l.Message})
		}
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Lines: bad}
	}
	return lines, nil
}

type Disposition string

const (
	DispositionComplete   Disposition = "COMPLETE"
	DispositionIncomplete Disposition = "INCOMPLETE"
)

// Decide is INCOMPLETE iff any line falls short.
func Decide(outcomes []Outcome) Disposition {
	for _, o := range outcomes {
		if o == Shortfall {
			return DispositionIncomplete
		}
	}
	return DispositionComplete
}

func (d Disposition) Status() orders.Status {
	if d == DispositionIncomplete {
		return orders.StatusIncomplete
	}
	return orders.StatusCompleted
}

// Prompt is the confirmation text shown before anything is written.
func (d Disposition) Prompt() string {
	if d == DispositionIncomplete {
		return "¿Confirmar recepción con discrepancias? La orden será marcada como INCOMPLETA."
	}
	return "¿Confirmar recepción completa? La orden será marcada como COMPLETADA y se actualizará el inventario."
}
