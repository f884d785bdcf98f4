package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine())
	require.NoError(t, err)
	return store
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "inventario.db")
	store := openStore(t, path)
	assert.Equal(t, path, store.Path())

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpsertLocation(domain.Location{Name: "Almacén Central"}); err != nil {
			return err
		}
		rack, err := tx.CreateEquipment(domain.Equipment{Name: "Rack 1", SerialNumber: "100001", Category: domain.CategoryRack, Location: "Almacén Central", Status: domain.StatusOperational})
		if err != nil {
			return err
		}
		_, err = tx.CreateEquipment(domain.Equipment{Name: "Amp", SerialNumber: "100002", Category: domain.CategoryAudio, ParentID: &rack.ID, Status: domain.StatusOperational})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := openStore(t, path)
	t.Cleanup(func() { _ = reopened.Close() })
	items := reopened.ListEquipment()
	require.Len(t, items, 2)
	assert.Equal(t, "Rack 1", items[0].Name)
	require.NotNil(t, items[1].ParentID)
	assert.Equal(t, items[0].ID, *items[1].ParentID)
	require.Len(t, reopened.ListLocations(), 1)

	created, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateEquipment(domain.Equipment{Name: "Foco", SerialNumber: "100003", Category: domain.CategoryLighting, Location: "Almacén Central", Status: domain.StatusOperational})
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, created.Violations)
	assert.Equal(t, int64(3), reopened.ListEquipment()[2].ID, "sequences survive reopen")
}

func TestStoreFailedTransactionWritesNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventario.db")
	store := openStore(t, path)

	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpsertLocation(domain.Location{Name: "Teatro"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, store.Close())

	reopened := openStore(t, path)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Empty(t, reopened.ListLocations())
}

func TestStoreCommitFailureKeepsMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "inventario.db"))
	require.NoError(t, store.DB().Close())

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertLocation(domain.Location{Name: "Teatro"})
		return err
	})
	require.Error(t, err)
	assert.Empty(t, store.ListLocations())
}
