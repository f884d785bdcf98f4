// Command inventariod serves the equipment inventory over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"inventario/internal/adapters/httpapi"
	"inventario/internal/adapters/reports"
	"inventario/internal/blob"
	"inventario/internal/config"
	"inventario/internal/core"
	"inventario/internal/infra/lock"
	"inventario/internal/logging"
	"inventario/pkg/domain"
)

// DefaultSeedLocation is created on first start so new items have somewhere to go.
const DefaultSeedLocation = "Almacén Central"

// expvar names are process-global.
var serviceExpvar = sync.OnceValue(func() *core.ExpvarMetricsRecorder {
	return core.NewExpvarMetricsRecorder("inventario_service")
})

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("inventariod", flag.ContinueOnError)
	flags.SetOutput(stderr)
	addr := flags.String("addr", "", "listen address, overrides INVENTARIO_HTTP_ADDRESS")
	seed := flags.String("seed-location", DefaultSeedLocation, "location created when none exist (empty disables)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := serve(ctx, cfg, *seed, logger); err != nil {
		logger.Error("inventariod stopped", zap.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, seed string, logger *zap.Logger) error {
	store, closer, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	traceOut, closeTrace, err := openTraceOutput(cfg.Trace.Path)
	if err != nil {
		return fmt.Errorf("open trace log: %w", err)
	}
	defer func() {
		if err := closeTrace(); err != nil {
			logger.Warn("close trace log", zap.Error(err))
		}
	}()
	traces := core.NewTraceLog(traceOut, cfg.Trace.Retention)

	opts := []core.Option{
		core.WithLogger(logger.Named("core")),
		core.WithAuditRecorder(core.NewZapAuditRecorder(logger)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{metrics, serviceExpvar()}),
		core.WithTracer(traces),
		core.WithStoreTimeout(cfg.Storage.Timeout),
		core.WithDefaultUser(cfg.Inventory.DefaultUser),
		core.WithDefaultCategory(domain.Category(cfg.Inventory.DefaultCategory)),
		core.WithSerialGenerator(core.SerialsForStyle(cfg.Inventory.SerialStyle)),
	}
	checks := []func(context.Context) error{storePing(store)}
	if cfg.Redis.Address != "" {
		guard := lock.NewRedis(lock.NewRedisClient(cfg.Redis), cfg.Redis.SubmissionTTL)
		defer func() { _ = guard.Close() }()
		if err := guard.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, core.WithSubmissionGuard(guard))
		checks = append(checks, guard.Ping)
		logger.Info("submission guard", zap.String("backend", "redis"), zap.String("address", cfg.Redis.Address))
	}

	svc := core.NewService(store, opts...)
	if err := svc.Refresh(ctx); err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	if seed != "" && len(svc.Locations()) == 0 {
		if _, err := svc.UpsertLocation(ctx, core.LocationInput{Name: seed}); err != nil {
			return fmt.Errorf("seed location: %w", err)
		}
	}

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	worker := reports.NewWorker(svc, blobs,
		reports.WithLogger(logger),
		reports.WithQueueSize(cfg.Exports.QueueSize),
		reports.WithMetricsRecorder(metrics),
	)
	worker.Start()

	server, err := httpapi.New(httpapi.Deps{
		Service:  svc,
		Exports:  worker,
		Logger:   logger,
		Gatherer: reg,
		Traces:   traces,
		Health: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	logger.Info("inventariod starting",
		zap.String("address", cfg.HTTP.Address),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", string(blobs.Driver())),
		zap.Int("equipment", len(svc.Inventory().Equipment)),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.HTTP.Address) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("export worker shutdown", zap.Error(err))
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	logger.Info("inventariod stopped cleanly")
	return nil
}

// openTraceOutput resolves the span log destination: none, stderr for "-", or
// a file opened for append.
func openTraceOutput(path string) (io.Writer, func() error, error) {
	switch path {
	case "":
		return nil, func() error { return nil }, nil
	case "-":
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// storePing checks SQL-backed stores; in-memory stores are always ready.
func storePing(store core.PersistentStore) func(context.Context) error {
	db, ok := store.(interface{ DB() *sql.DB })
	if !ok {
		return func(context.Context) error { return nil }
	}
	return func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	}
}
