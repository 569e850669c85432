package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id         TEXT    NOT NULL,
    status          TEXT    NOT NULL,
    current_step    TEXT    NOT NULL DEFAULT '',
    high_water_mark INTEGER NOT NULL DEFAULT 0,
    payload         TEXT,
    error_messages  TEXT    NOT NULL DEFAULT '[]',
    trace_id        TEXT    NOT NULL DEFAULT '',
    span_id         TEXT    NOT NULL DEFAULT '',
    updated_at      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// SQLite stores the journal in a local file. Rows are ordered by their
// autoincrement id, never by the text timestamp.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Save(ctx context.Context, e *Entry) error {
	const q = `
		INSERT INTO saga_logs
			(saga_id, status, current_step, high_water_mark, payload, error_messages, trace_id, span_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.SagaID,
		string(e.Status),
		e.Step,
		e.HighWaterMark,
		nullableString(e.Payload),
		encodeErrors(e.Errors),
		e.TraceID,
		e.SpanID,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", e.SagaID, err)
	}
	return nil
}

const sqliteSelect = `
	SELECT saga_id, status, current_step, high_water_mark, COALESCE(payload, ''),
	       error_messages, trace_id, span_id, updated_at
	FROM   saga_logs
	WHERE  saga_id = ?`

func (s *SQLite) History(ctx context.Context, sagaID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+" ORDER BY id", sagaID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", sagaID, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLite) Latest(ctx context.Context, sagaID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+" ORDER BY id DESC LIMIT 1", sagaID)
	e, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (Entry, error) {
	var (
		e            Entry
		status, errs string
		updatedAt    string
	)
	if err := sc.Scan(&e.SagaID, &status, &e.Step, &e.HighWaterMark, &e.Payload,
		&errs, &e.TraceID, &e.SpanID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("sqlite: scan saga log: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
	}
	e.Status = Status(status)
	e.Errors = decodeErrors(errs)
	e.UpdatedAt = t
	return e, nil
}
