package core

import (
	"context"
	"path/filepath"
	"testing"

	"inventario/internal/config"
	"inventario/internal/infra/persistence/memory"
	"inventario/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, closer, err := OpenPersistentStore(context.Background(), config.StorageConfig{Driver: config.StorageMemory}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer.Close()
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inv.db")
	cfg := config.StorageConfig{Driver: config.StorageSQLite, SQLitePath: path}

	store, closer, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	svc := NewService(store)
	if _, err := svc.UpsertLocation(ctx, LocationInput{Name: "Teatro"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, closer, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closer.Close()
	svc = NewService(reopened)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if locs := svc.Locations(); len(locs) != 1 || locs[0].Name != "Teatro" {
		t.Fatalf("expected persisted location, got %+v", locs)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, _, err := OpenPersistentStore(context.Background(), config.StorageConfig{Driver: "mongo"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
