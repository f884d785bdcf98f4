package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, store.Driver())

	info, err := store.Put(ctx, "exports/1/inventory.csv", strings.NewReader("id,name\n1,Rack\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"kind": "inventory"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.Equal(t, "http://local.blob/exports/1/inventory.csv", info.URL)

	_, err = store.Put(ctx, "exports/1/inventory.csv", strings.NewReader("again"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	got, rc, err := store.Get(ctx, "exports/1/inventory.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "id,name\n1,Rack\n", string(body))
	assert.Equal(t, "text/csv", got.ContentType)
	assert.Equal(t, "inventory", got.Metadata["kind"])

	head, err := store.Head(ctx, "exports/1/inventory.csv")
	require.NoError(t, err)
	assert.Equal(t, info.ETag, head.ETag)

	_, err = store.Put(ctx, "exports/2/history.csv", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	list, err := store.List(ctx, "exports/1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "exports/1/inventory.csv", list[0].Key)

	deleted, err := store.Delete(ctx, "exports/1/inventory.csv")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.Delete(ctx, "exports/1/inventory.csv")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, _, err = store.Get(ctx, "exports/1/inventory.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = store.Head(ctx, "exports/1/inventory.csv")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b", "sidecar.meta"} {
		_, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{})
		assert.Error(t, err, "key %q", key)
	}
}

func TestStorePresign(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	url, err := store.PresignURL(context.Background(), "exports/a.xlsx", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.Equal(t, "http://local.blob/exports/a.xlsx", url)
	_, err = store.PresignURL(context.Background(), "exports/a.xlsx", core.SignedURLOptions{Method: "PUT"})
	require.ErrorIs(t, err, core.ErrUnsupported)
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "a/b.csv", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"b.csv", "b.csv.meta"}, names)
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.csv", strings.NewReader("x"), core.PutOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
