package detect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseModelCache(t *testing.T, cache ModelCache) {
	t.Helper()
	ctx := context.Background()

	ok, err := cache.Has(ctx, "onsets-frames")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cache.Get(ctx, "onsets-frames")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Put(ctx, "onsets-frames", []byte{1, 2, 3}))
	require.NoError(t, cache.Put(ctx, "onsets-frames", []byte{4, 5}))

	ok, err = cache.Has(ctx, "onsets-frames")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := cache.Get(ctx, "onsets-frames")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, data)

	require.NoError(t, cache.Clear(ctx))
	ok, err = cache.Has(ctx, "onsets-frames")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryModelCache(t *testing.T) {
	exerciseModelCache(t, NewMemoryModelCache())
}

func TestMemoryModelCache_CopiesData(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryModelCache()

	data := []byte{1, 2, 3}
	require.NoError(t, cache.Put(ctx, "m", data))
	data[0] = 9

	got, err := cache.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSQLiteModelCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "models.sqlite3")
	cache, err := NewSQLiteModelCache(path)
	require.NoError(t, err)
	defer cache.Close()

	exerciseModelCache(t, cache)
}

func TestSQLiteModelCache_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "models.sqlite3")

	cache, err := NewSQLiteModelCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "weights:basic-pitch", []byte("weights")))
	require.NoError(t, cache.Close())

	reopened, err := NewSQLiteModelCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Get(ctx, "weights:basic-pitch")
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), data)
}
