package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "run/a.json", []byte(`{"x":1}`)))

	data, err := s.Read(ctx, "run/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(data))

	ok, err := s.Exists(ctx, "run/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "run/a.json"))
	ok, err = s.Exists(ctx, "run/a.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorageNotFound(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorageListIsRecursive(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "a/1.txt", []byte("1")))
	require.NoError(t, s.Write(ctx, "a/b/2.txt", []byte("2")))
	require.NoError(t, s.Write(ctx, "c/3.txt", []byte("3")))

	paths, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1.txt", "a/b/2.txt"}, paths)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1.txt", "a/b/2.txt", "c/3.txt"}, all)

	none, err := s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalStorageOverwriteIsAtomicRename(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "f", []byte("old")))
	require.NoError(t, s.Write(ctx, "f", []byte("new")))

	data, err := s.Read(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	// No temp file leftovers.
	paths, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, paths)
}
