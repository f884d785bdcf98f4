// Package sqlite persists the in-memory inventory state to a SQLite file,
// snapshotting every bucket after each successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"inventario/internal/infra/persistence/memory"
	"inventario/internal/infra/persistence/snapshotsql"
	"inventario/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultPath is used when no path is configured.
const DefaultPath = "inventario.db"

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path, applies migrations and
// hydrates the in-memory state from any stored snapshot.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps the file lock simple
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := snapshotsql.Migrate(ctx, db, snapshotsql.SQLite, fsys); err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	snapshot, found, err := snapshotsql.Load(ctx, db, snapshotsql.SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if found {
		mem.ImportState(snapshot)
	}
	return &Store{Store: mem, db: db, path: path}, nil
}

// RunInTransaction applies fn and writes the resulting snapshot to SQLite
// before the in-memory state is replaced.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	return s.Store.RunInTransactionWithCommit(ctx, fn, s.persist)
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
	return snapshotsql.Save(ctx, s.db, snapshotsql.SQLite, snapshot)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
