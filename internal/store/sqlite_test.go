package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestEngine(t *testing.T) (*SQLiteEngine, string) {
	t.Helper()
	dataDir := t.TempDir()

	engine, err := NewSQLiteEngine(dataDir)
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
	})

	return engine, dataDir
}

func TestSQLiteEngine_CreatesDirectoryLayout(t *testing.T) {
	_, dataDir := setupTestEngine(t)

	_, err := os.Stat(filepath.Join(dataDir, "public.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "users", "index.db"))
	assert.NoError(t, err)
}

func TestSQLiteEngine_GetMissingKey(t *testing.T) {
	engine, _ := setupTestEngine(t)

	_, err := engine.Get(context.Background(), NamespaceUsers, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteEngine_InsertReturnsPrevious(t *testing.T) {
	engine, _ := setupTestEngine(t)
	ctx := context.Background()

	prev, err := engine.Insert(ctx, NamespaceUsers, "k", []byte("one"))
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = engine.Insert(ctx, NamespaceUsers, "k", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), prev)

	got, err := engine.Get(ctx, NamespaceUsers, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestSQLiteEngine_NamespacesAreIndependent(t *testing.T) {
	engine, _ := setupTestEngine(t)
	ctx := context.Background()

	_, err := engine.Insert(ctx, NamespaceUsers, "shared-key", []byte("user value"))
	require.NoError(t, err)

	_, err = engine.Get(ctx, NamespacePublic, "shared-key")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.Insert(ctx, NamespacePublic, "shared-key", []byte("public value"))
	require.NoError(t, err)

	userVal, err := engine.Get(ctx, NamespaceUsers, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("user value"), userVal)
}

func TestSQLiteEngine_UnknownNamespace(t *testing.T) {
	engine, _ := setupTestEngine(t)

	_, err := engine.Get(context.Background(), Namespace("bogus"), "k")
	assert.Error(t, err)
}

func TestSQLiteEngine_SurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	engine, err := NewSQLiteEngine(dataDir)
	require.NoError(t, err)
	_, err = engine.Insert(ctx, NamespaceUsers, "u1", []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	reopened, err := NewSQLiteEngine(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, NamespaceUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestSQLiteEngine_KeysOrdered(t *testing.T) {
	engine, _ := setupTestEngine(t)
	ctx := context.Background()

	for _, k := range []string{"c", "a", "b"} {
		_, err := engine.Insert(ctx, NamespaceUsers, k, []byte(k))
		require.NoError(t, err)
	}

	keys, err := engine.Keys(ctx, NamespaceUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMemoryEngine_MatchesEngineContract(t *testing.T) {
	engine := NewMemoryEngine()
	ctx := context.Background()

	_, err := engine.Get(ctx, NamespacePublic, "stats")
	assert.ErrorIs(t, err, ErrNotFound)

	prev, err := engine.Insert(ctx, NamespacePublic, "stats", []byte("v1"))
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = engine.Insert(ctx, NamespacePublic, "stats", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), prev)

	got, err := engine.Get(ctx, NamespacePublic, "stats")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// Stored bytes are isolated from caller mutation.
	data := []byte("aliased")
	_, err = engine.Insert(ctx, NamespaceUsers, "k", data)
	require.NoError(t, err)
	data[0] = 'X'
	got, err = engine.Get(ctx, NamespaceUsers, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("aliased"), got)
}
