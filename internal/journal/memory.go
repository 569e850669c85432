package journal

import (
	"context"
	"sync"
)

// Memory keeps the journal in process. It backs tests and the no-DSN mode.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]Entry
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]Entry)}
}

func (m *Memory) Save(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.Errors = append([]string(nil), e.Errors...)
	m.rows[e.SagaID] = append(m.rows[e.SagaID], cp)
	return nil
}

func (m *Memory) History(_ context.Context, sagaID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.rows[sagaID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Entry(nil), rows...), nil
}

func (m *Memory) Latest(_ context.Context, sagaID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.rows[sagaID]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	e := rows[len(rows)-1]
	return &e, nil
}

func (m *Memory) Close() error { return nil }
