package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutURLDelete(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewLocalStore(root, "/uploads/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "abc/master.jpg", []byte("jpeg")))

	data, err := os.ReadFile(filepath.Join(root, "abc", "master.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "/uploads/abc/master.jpg", store.URL("abc/master.jpg"))

	require.NoError(t, store.Delete(ctx, "abc/master.jpg"))
	_, err = os.Stat(filepath.Join(root, "abc", "master.jpg"))
	assert.True(t, os.IsNotExist(err))

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "abc/master.jpg"))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store := NewLocalStore(t.TempDir(), "/uploads")
	ctx := context.Background()

	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../outside", "..", `a\b`} {
		assert.ErrorIs(t, store.Put(ctx, key, []byte("x")), ErrInvalidKey, key)
	}
}

func TestLocalStore_PutHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewLocalStore(t.TempDir(), "/uploads")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "k/file.jpg", []byte("x")), context.Canceled)
}
