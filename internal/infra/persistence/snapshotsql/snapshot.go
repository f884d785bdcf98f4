// Package snapshotsql stores memory.Snapshot buckets as JSON payloads in a
// single `state(bucket, payload)` table. It is shared by the SQLite and
// Postgres stores, which differ only in dialect and placeholder format.
package snapshotsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"

	"inventario/internal/infra/persistence/memory"
)

// Table is the snapshot table created by the embedded migrations.
const Table = "state"

// Bucket names persisted per commit.
const (
	BucketEquipment = "equipment"
	BucketLocations = "locations"
	BucketHistory   = "history"
	BucketSequences = "sequences"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketEquipment, BucketLocations, BucketHistory, BucketSequences}

// Dialect couples a goose dialect with the matching squirrel placeholder format.
type Dialect struct {
	Goose       goose.Dialect
	Placeholder sq.PlaceholderFormat
}

var (
	// SQLite uses `?` placeholders.
	SQLite = Dialect{Goose: goose.DialectSQLite3, Placeholder: sq.Question}
	// Postgres uses `$n` placeholders.
	Postgres = Dialect{Goose: goose.DialectPostgres, Placeholder: sq.Dollar}
)

// Migrate applies the migrations found at the root of fsys.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect.Goose, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Encode marshals every bucket of snapshot.
func Encode(snapshot memory.Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketEquipment:
			data, err = json.Marshal(snapshot.Equipment)
		case BucketLocations:
			data, err = json.Marshal(snapshot.Locations)
		case BucketHistory:
			data, err = json.Marshal(snapshot.History)
		case BucketSequences:
			data, err = json.Marshal(snapshot.Sequences)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// Decode rebuilds a snapshot from bucket payloads. Unknown buckets are ignored.
func Decode(payloads map[string][]byte) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	targets := map[string]any{
		BucketEquipment: &snapshot.Equipment,
		BucketLocations: &snapshot.Locations,
		BucketHistory:   &snapshot.History,
		BucketSequences: &snapshot.Sequences,
	}
	for bucket, payload := range payloads {
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return snapshot, nil
}

// Load reads every stored bucket. The boolean is false when the table is empty.
func Load(ctx context.Context, db *sql.DB, dialect Dialect) (memory.Snapshot, bool, error) {
	query, args, err := sq.Select("bucket", "payload").From(Table).PlaceholderFormat(dialect.Placeholder).ToSql()
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("build select: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	payloads := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("scan state: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("iterate state: %w", err)
	}
	if len(payloads) == 0 {
		return memory.Snapshot{}, false, nil
	}
	snapshot, err := Decode(payloads)
	if err != nil {
		return memory.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// UpsertStatement builds the bucket upsert for dialect.
func UpsertStatement(dialect Dialect, bucket string, payload []byte) (string, []any, error) {
	return sq.Insert(Table).
		Columns("bucket", "payload").
		Values(bucket, payload).
		Suffix("ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload").
		PlaceholderFormat(dialect.Placeholder).
		ToSql()
}

// Save writes every bucket of snapshot inside one SQL transaction.
func Save(ctx context.Context, db *sql.DB, dialect Dialect, snapshot memory.Snapshot) (retErr error) {
	payloads, err := Encode(snapshot)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range Buckets {
		query, args, err := UpsertStatement(dialect, bucket, payloads[bucket])
		if err != nil {
			return fmt.Errorf("build upsert %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
