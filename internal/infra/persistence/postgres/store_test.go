package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario/pkg/domain"
)

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, errors.New("dial refused")
	})
	defer restore()

	_, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres")
}

func TestNewStoreUsesDefaults(t *testing.T) {
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return nil, errors.New("stop")
	})
	defer restore()

	_, _ = NewStore(context.Background(), "", domain.NewRulesEngine())
	assert.Equal(t, defaultDriver, gotDriver)
	assert.Equal(t, defaultDSN, gotDSN)
}

// TestStoreRoundTrip runs against a live database when INVENTARIO_TEST_POSTGRES_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("INVENTARIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INVENTARIO_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, "DELETE FROM state")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(ctx, dsn, domain.NewRulesEngine())
	require.NoError(t, err)
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertLocation(domain.Location{Name: "Almacén Central"})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	locations := reopened.ListLocations()
	require.Len(t, locations, 1)
	assert.Equal(t, "Almacén Central", locations[0].Name)
}
