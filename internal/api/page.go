package api

import (
	"bytes"
	"encoding/json"
)

// Page is the one shape list endpoints decode into, whether the backend
// answered with a Spring page object or with a bare array.
type Page[T any] struct {
	Items         []T `json:"items"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

type pageMeta struct {
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

func (p *Page[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{Items: items, Size: len(items), TotalElements: len(items), TotalPages: 1}
		return nil
	}

	var wire struct {
		Content []T `json:"content"`
		pageMeta
		// newer Spring versions nest the counters
		Page *pageMeta `json:"page"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return err
	}
	meta := wire.pageMeta
	if wire.Page != nil {
		meta = *wire.Page
	}
	*p = Page[T]{
		Items:         wire.Content,
		Number:        meta.Number,
		Size:          meta.Size,
		TotalElements: meta.TotalElements,
		TotalPages:    meta.TotalPages,
	}
	return nil
}

func mapPage[A, B any](p Page[A], fn func(A) B) Page[B] {
	out := Page[B]{
		Items:         make([]B, 0, len(p.Items)),
		Number:        p.Number,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
	for _, it := range p.Items {
		out.Items = append(out.Items, fn(it))
	}
	return out
}
