package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, store.Driver())

	store, err = Open(ctx, config.BlobConfig{FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, store.Driver())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.BlobConfig{Driver: "ftp"})
	require.Error(t, err)
}

func TestOpenS3RequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), config.BlobConfig{Driver: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
