package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s TokenStore) {
	t.Helper()
	ctx := context.Background()

	a, r, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, a)
	require.Empty(t, r)

	require.NoError(t, s.Save(ctx, "a1", "r1"))
	require.NoError(t, s.Save(ctx, "a2", "r1"))
	a, r, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "a2", a)
	require.Equal(t, "r1", r)

	require.NoError(t, s.Clear(ctx))
	a, r, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, a)
	require.Empty(t, r)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, &MemoryStore{})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	testStore(t, s)
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "a1", "r1"))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	a, r, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "a1", a)
	require.Equal(t, "r1", r)
}

func TestSQLiteStore_ClosedDB(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Load(context.Background())
	require.Error(t, err)
	require.Error(t, s.Save(context.Background(), "a", "r"))
	require.Error(t, s.Clear(context.Background()))
}
