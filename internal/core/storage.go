package core

import (
	"context"
	"fmt"
	"io"

	"inventario/internal/config"
	"inventario/internal/infra/persistence/memory"
	"inventario/internal/infra/persistence/postgres"
	"inventario/internal/infra/persistence/sqlite"
	"inventario/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenPersistentStore selects a backend from configuration. The returned
// closer releases database handles.
//
//	INVENTARIO_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	INVENTARIO_SQLITE_PATH: path to sqlite file (default ./inventario.db)
//	INVENTARIO_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context, cfg config.StorageConfig, engine *RulesEngine) (PersistentStore, io.Closer, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(engine), nopCloser{}, nil
	case config.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
