// Package search filters and sorts the lists shown by the desk sections.
package search

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Filter keeps the items where any field contains term, ignoring case.
// A blank term keeps everything.
func Filter[T any](items []T, term string, fields ...func(T) string) []T {
	if strings.TrimSpace(term) == "" {
		return items
	}
	term = strings.ToLower(term)
	out := make([]T, 0, len(items))
	for _, it := range items {
		for _, f := range fields {
			if v := f(it); v != "" && strings.Contains(strings.ToLower(v), term) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// ID renders an integer id for Filter.
func ID(id int) string { return strconv.Itoa(id) }

type Direction int

const (
	Asc Direction = iota
	Desc
)

// ParseDirection reads "asc"/"desc"; anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, "desc") {
		return Desc
	}
	return Asc
}

type kind int

const (
	kindNull kind = iota
	kindText
	kindNumber
)

// Value is a sort key. Build it with Text, Number, Decimal or Null.
type Value struct {
	kind kind
	s    string
	n    float64
}

// Text is a string key; the empty string sorts as null.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: kindText, s: s}
}

func Number(n float64) Value { return Value{kind: kindNumber, n: n} }

func Decimal(d decimal.Decimal) Value {
	f, _ := d.Float64()
	return Number(f)
}

func Null() Value { return Value{} }

func (v Value) String() string {
	switch v.kind {
	case kindText:
		return v.s
	case kindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return ""
	}
}

// Sort returns a sorted copy of items. Null keys go last in both
// directions; strings compare with Spanish collation.
func Sort[T any](items []T, key func(T) Value, dir Direction) []T {
	out := append([]T(nil), items...)
	col := collate.New(language.Spanish)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		switch {
		case a.kind == kindNull:
			return false
		case b.kind == kindNull:
			return true
		}
		var c int
		switch {
		case a.kind == kindNumber && b.kind == kindNumber:
			switch {
			case a.n < b.n:
				c = -1
			case a.n > b.n:
				c = 1
			}
		case a.kind == kindText && b.kind == kindText:
			c = col.CompareString(a.s, b.s)
		default:
			c = col.CompareString(strings.ToLower(a.String()), strings.ToLower(b.String()))
		}
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}
