package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inventario/internal/config"
	"inventario/internal/core"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INVENTARIO_STORAGE_DRIVER", "memory")
	t.Setenv("INVENTARIO_BLOB_DRIVER", "memory")
	t.Setenv("INVENTARIO_REDIS_ADDRESS", "")
	t.Setenv("INVENTARIO_LOG_LEVEL", "error")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-bogus"}, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "bogus") {
		t.Fatalf("expected flag error on stderr, got %q", stderr.String())
	}
}

func TestRunReportsConfigErrors(t *testing.T) {
	memoryEnv(t)
	t.Setenv("INVENTARIO_STORE_TIMEOUT", "soon")
	var stderr bytes.Buffer
	if code := run(context.Background(), nil, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "INVENTARIO_STORE_TIMEOUT") {
		t.Fatalf("expected offending variable in %q", stderr.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	memoryEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var stderr bytes.Buffer
	if code := run(ctx, []string{"-addr", "127.0.0.1:0"}, &stderr); code != 0 {
		t.Fatalf("expected clean exit, got %d (%s)", code, stderr.String())
	}
}

func TestServeWritesTraceLog(t *testing.T) {
	memoryEnv(t)
	path := filepath.Join(t.TempDir(), "spans.jsonl")
	t.Setenv("INVENTARIO_TRACE_PATH", path)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if code := run(ctx, []string{"-addr", "127.0.0.1:0"}, &bytes.Buffer{}); code != 0 {
		t.Fatalf("run exited with %d", code)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace log: %v", err)
	}
	if !strings.Contains(string(raw), `"operation":"upsert_location"`) {
		t.Fatalf("expected the seed write to be traced, got %q", raw)
	}
}

func TestOpenTraceOutput(t *testing.T) {
	w, closeFn, err := openTraceOutput("")
	if err != nil || w != nil || closeFn() != nil {
		t.Fatalf("empty path must disable output, got %v %v", w, err)
	}
	if w, _, _ := openTraceOutput("-"); w != os.Stderr {
		t.Fatalf("dash must select stderr")
	}
	if _, _, err := openTraceOutput(filepath.Join(t.TempDir(), "missing", "spans.jsonl")); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}

func TestServeSeedsLocationOnce(t *testing.T) {
	memoryEnv(t)
	t.Setenv("INVENTARIO_STORAGE_DRIVER", "sqlite")
	path := filepath.Join(t.TempDir(), "inv.db")
	t.Setenv("INVENTARIO_SQLITE_PATH", path)

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if code := run(ctx, []string{"-addr", "127.0.0.1:0"}, &bytes.Buffer{}); code != 0 {
			cancel()
			t.Fatalf("run %d exited with %d", i, code)
		}
		cancel()
	}

	store, closer, err := core.OpenPersistentStore(context.Background(), config.StorageConfig{Driver: config.StorageSQLite, SQLitePath: path}, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer.Close()
	svc := core.NewService(store)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	locs := svc.Locations()
	if len(locs) != 1 || locs[0].Name != DefaultSeedLocation {
		t.Fatalf("expected a single seeded location, got %+v", locs)
	}
}
