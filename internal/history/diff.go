package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	emptyMark    = "—"
	truncateAt   = 50
	notAvailable = "N/A"
)

type Field struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Changed bool   `json:"changed,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// Side is one column of a diff: parsed fields, or Text when the state is
// empty or not a JSON object.
type Side struct {
	Fields []Field `json:"fields,omitempty"`
	Text   string  `json:"text,omitempty"`
}

type Diff struct {
	Previous Side `json:"previous"`
	New      Side `json:"new"`
}

func blankState(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == notAvailable || s == "null"
}

// StateDiff lines up the keys of two JSON object states. Every key of
// either side appears on both; a missing value shows as removed.
func StateDiff(previous, next string) Diff {
	if blankState(previous) && blankState(next) {
		return Diff{Previous: Side{Text: emptyMark}, New: Side{Text: emptyMark}}
	}
	pk, pv, perr := parseState(previous)
	nk, nv, nerr := parseState(next)
	if perr != nil || nerr != nil {
		return Diff{Previous: FormatState(previous), New: FormatState(next)}
	}

	keys := append([]string(nil), pk...)
	for _, k := range nk {
		if _, ok := pv[k]; !ok {
			keys = append(keys, k)
		}
	}

	var d Diff
	for _, k := range keys {
		p, inPrev := pv[k]
		n, inNext := nv[k]
		changed := !inPrev || !inNext || p != n
		d.Previous.Fields = append(d.Previous.Fields, field(k, p, inPrev, changed))
		d.New.Fields = append(d.New.Fields, field(k, n, inNext, changed))
	}
	if len(keys) == 0 {
		d.Previous.Text, d.New.Text = emptyMark, emptyMark
	}
	return d
}

func field(key, value string, present, changed bool) Field {
	if !present {
		return Field{Key: key, Value: emptyMark, Removed: true}
	}
	return Field{Key: key, Value: value, Changed: changed}
}

// FormatState renders a single state: its fields when it parses, else the
// raw text cut at 50 characters.
func FormatState(s string) Side {
	if blankState(s) {
		return Side{Text: emptyMark}
	}
	keys, vals, err := parseState(s)
	if err != nil {
		r := []rune(s)
		if len(r) > truncateAt {
			return Side{Text: string(r[:truncateAt]) + "..."}
		}
		return Side{Text: s}
	}
	if len(keys) == 0 {
		return Side{Text: emptyMark}
	}
	out := Side{Fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		out.Fields = append(out.Fields, Field{Key: k, Value: vals[k]})
	}
	return out
}

var errNotJSON = errors.New("history: state is not JSON")

// parseState reads a JSON object keeping its key order. Values are
// rendered as display text. Blank states are empty objects; valid JSON
// that is not an object has no keys.
func parseState(s string) ([]string, map[string]string, error) {
	vals := map[string]string{}
	if blankState(s) {
		return nil, vals, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, nil, errNotJSON
	}
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, vals, nil
	}
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, seen := vals[key]; !seen {
			keys = append(keys, key)
		}
		vals[key] = display(raw)
	}
	return keys, vals, nil
}

func display(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// FormatQuantity shows a movement with an explicit sign and three
// decimals.
func FormatQuantity(q decimal.NullDecimal) string {
	if !q.Valid {
		return notAvailable
	}
	if q.Decimal.Sign() >= 0 {
		return "+" + q.Decimal.StringFixed(3)
	}
	return q.Decimal.StringFixed(3)
}
