package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id              BIGSERIAL   PRIMARY KEY,
    saga_id         TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',
    high_water_mark INTEGER     NOT NULL DEFAULT 0,
    payload         TEXT,
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// Postgres stores the journal in the desk's own database, shared by every
// API instance so any of them can resume a saga another one started.
type Postgres struct {
	DB *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// Migrate creates the journal table when it is missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres: apply journal schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.DB.Close()
	return nil
}

func (p *Postgres) Save(ctx context.Context, e *Entry) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO saga_logs
			(saga_id, status, current_step, high_water_mark, payload, error_messages, trace_id, span_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.SagaID, string(e.Status), e.Step, e.HighWaterMark, nullableString(e.Payload),
		encodeErrors(e.Errors), e.TraceID, e.SpanID, e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: save saga log for %q: %w", e.SagaID, err)
	}
	return nil
}

const postgresSelect = `
	SELECT saga_id, status, current_step, high_water_mark, COALESCE(payload, ''),
	       error_messages, trace_id, span_id, updated_at
	FROM   saga_logs
	WHERE  saga_id = $1`

func (p *Postgres) History(ctx context.Context, sagaID string) ([]Entry, error) {
	rows, err := p.DB.Query(ctx, postgresSelect+" ORDER BY id", sagaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: history for %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: history for %q: %w", sagaID, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (p *Postgres) Latest(ctx context.Context, sagaID string) (*Entry, error) {
	e, err := scanPostgres(p.DB.QueryRow(ctx, postgresSelect+" ORDER BY id DESC LIMIT 1", sagaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanPostgres(row pgx.Row) (Entry, error) {
	var (
		e            Entry
		status, errs string
	)
	err := row.Scan(&e.SagaID, &status, &e.Step, &e.HighWaterMark, &e.Payload,
		&errs, &e.TraceID, &e.SpanID, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("postgres: scan saga log: %w", err)
	}
	e.Status = Status(status)
	e.Errors = decodeErrors(errs)
	return e, nil
}
