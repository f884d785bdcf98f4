package blob

import (
	"context"
	"fmt"

	"inventario/internal/config"
	fsstore "inventario/internal/infra/blob/fs"
	memorystore "inventario/internal/infra/blob/memory"
	s3store "inventario/internal/infra/blob/s3"
)

// Open selects a Store implementation from configuration.
//
//	INVENTARIO_BLOB_DRIVER: fs|s3|memory (default fs)
//	INVENTARIO_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	INVENTARIO_BLOB_S3_*: bucket, region, endpoint and path style when driver=s3
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fsstore.New(cfg.FSRoot)
	case DriverS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
