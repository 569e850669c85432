// Package journal is the append-only log of saga transitions. Each row is an
// immutable snapshot; the latest row for a saga is its current state.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/economato/go-order-desk/internal/telemetry"
)

type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
	StatusFailed       Status = "FAILED"
)

var ErrNotFound = errors.New("journal: saga not found")

// Entry is one row of the journal.
type Entry struct {
	SagaID string `json:"saga_id"`
	Status Status `json:"status"`

	// Step is the name of the step that just ran, failed or was compensated.
	Step string `json:"step,omitempty"`

	// HighWaterMark counts the steps whose effects are currently applied.
	// Resume continues at this index; compensation walks back from it.
	HighWaterMark int `json:"high_water_mark"`

	// Payload is the input that started the saga, written on STARTED only.
	Payload string `json:"payload,omitempty"`

	Errors    []string  `json:"errors,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists journal entries. Save always appends.
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	// History returns every entry of a saga, oldest first.
	History(ctx context.Context, sagaID string) ([]Entry, error)
	Latest(ctx context.Context, sagaID string) (*Entry, error)
}

// Store is a Repository that owns a connection.
type Store interface {
	Repository
	Close() error
}

// NewEntry builds an entry stamped with the trace ids found in ctx.
func NewEntry(ctx context.Context, sagaID string, status Status, step string, hwm int, payload string, errs []string) *Entry {
	ti := telemetry.FromContext(ctx)
	return &Entry{
		SagaID:        sagaID,
		Status:        status,
		Step:          step,
		HighWaterMark: hwm,
		Payload:       payload,
		Errors:        errs,
		TraceID:       ti.TraceID,
		SpanID:        ti.SpanID,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Terminal reports whether no further forward or backward work is expected.
func (e Entry) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusCompensated
}

func encodeErrors(errs []string) string {
	if len(errs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeErrors(s string) []string {
	var out []string
	if s == "" || json.Unmarshal([]byte(s), &out) != nil || len(out) == 0 {
		return nil
	}
	return out
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
