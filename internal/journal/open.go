package journal

import (
	"context"
	"strings"

	"github.com/economato/go-order-desk/internal/postgres"
)

// Open picks a store from the DSN: postgres:// and postgresql:// use pgx,
// "memory" or an empty DSN keep the journal in process, anything else is a
// SQLite file path (an optional sqlite:// prefix is stripped).
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		pg := &Postgres{DB: pool}
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil
	default:
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
}
