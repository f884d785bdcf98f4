package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	assert.Equal(t, core.DriverS3, store.Driver())
	assert.Equal(t, "mock-bucket", store.Bucket())

	payload := []byte("id,name\n1,Rack\n")
	info, err := store.Put(ctx, "exports/1/inventory.csv", bytes.NewReader(payload), core.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, "text/csv", info.ContentType)

	_, err = store.Put(ctx, "exports/1/inventory.csv", bytes.NewReader(payload), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	_, rc, err := store.Get(ctx, "exports/1/inventory.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, data)

	list, err := store.List(ctx, "exports/")
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
}

func TestMockStorePresign(t *testing.T) {
	store := NewMockForTests()
	url, err := store.PresignURL(context.Background(), "exports/a.xlsx", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.Contains(t, url, "mock-bucket/exports/a.xlsx")
	assert.Contains(t, url, "X-Amz-Signature")

	_, err = store.PresignURL(context.Background(), "exports/a.xlsx", core.SignedURLOptions{Method: "PUT"})
	require.ErrorIs(t, err, core.ErrUnsupported)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
