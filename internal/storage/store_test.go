package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "chat_history_alice.json")
	require.NoError(t, err)
	assert.False(t, ok, "missing key must report absence, not an error")

	require.NoError(t, store.Set(ctx, "chat_history_alice.json", `{"a":[]}`))
	value, ok, err := store.Get(ctx, "chat_history_alice.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":[]}`, value)

	require.NoError(t, store.Set(ctx, "chat_history_alice.json", `{"b":[]}`))
	value, _, err = store.Get(ctx, "chat_history_alice.json")
	require.NoError(t, err)
	assert.Equal(t, `{"b":[]}`, value, "Set must overwrite")

	assert.ErrorIs(t, store.Set(ctx, "", "x"), ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store := NewFileStore(dir)
	exerciseStore(t, store)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "chat_history_alice.json", entries[0].Name())
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../escape.json", "a/b.json", `a\b.json`, ".."} {
		_, _, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, store.Set(ctx, key, "x"), ErrInvalidKey, key)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "chat.db")
	store, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	store, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, config.StoreConfig{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = Open(ctx, config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}
