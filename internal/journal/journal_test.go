package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Latest(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.History(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, NewEntry(ctx, "s1", StatusStarted, "", 0, `{"order_id":42}`, nil)))
	require.NoError(t, s.Save(ctx, NewEntry(ctx, "s1", StatusStepDone, "stock:7", 1, "", nil)))
	require.NoError(t, s.Save(ctx, NewEntry(ctx, "s1", StatusFailed, "stock:9", 1, "", []string{"stock:9: boom"})))
	require.NoError(t, s.Save(ctx, NewEntry(ctx, "other", StatusStarted, "", 0, "{}", nil)))

	hist, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, StatusStarted, hist[0].Status)
	assert.Equal(t, `{"order_id":42}`, hist[0].Payload)
	assert.Empty(t, hist[1].Payload)
	assert.Nil(t, hist[1].Errors)

	last, err := s.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, "stock:9", last.Step)
	assert.Equal(t, 1, last.HighWaterMark)
	assert.Equal(t, []string{"stock:9: boom"}, last.Errors)
	assert.False(t, last.UpdatedAt.IsZero())
	assert.False(t, last.Terminal())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestOpenPicksStoreFromDSN(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	lite, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	assert.IsType(t, &SQLite{}, lite)
}
