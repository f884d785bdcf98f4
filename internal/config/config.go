// Package config loads inventario settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Serial styles.
const (
	SerialNumeric = "numeric"
	SerialToken   = "token"
)

type HTTPConfig struct {
	Address         string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
	// Timeout bounds every call to the data-access collaborator.
	Timeout time.Duration
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

type BlobConfig struct {
	Driver string
	FSRoot string
	S3     S3Config
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// SubmissionTTL is how long a submission key is held when the holder never releases it.
	SubmissionTTL time.Duration
}

type LogConfig struct {
	Level    string
	Encoding string
}

// TraceConfig enables the span log. Path "-" writes to stderr and an empty
// Path keeps spans in memory only.
type TraceConfig struct {
	Path      string
	Retention int
}

type InventoryConfig struct {
	DefaultCategory string
	DefaultUser     string
	SerialStyle     string
}

type ExportsConfig struct {
	QueueSize int
}

// Config is the complete runtime configuration.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Blob      BlobConfig
	Redis     RedisConfig
	Log       LogConfig
	Trace     TraceConfig
	Inventory InventoryConfig
	Exports   ExportsConfig
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (*Config, error) {
	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return fallback
		}
		return d
	}
	integer := func(key string, fallback int) int {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return fallback
		}
		return n
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Address:         getEnv("INVENTARIO_HTTP_ADDRESS", ":8080"),
			ShutdownTimeout: duration("INVENTARIO_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("INVENTARIO_STORAGE_DRIVER", StorageSQLite)),
			SQLitePath:  getEnv("INVENTARIO_SQLITE_PATH", "./inventario.db"),
			PostgresDSN: getEnv("INVENTARIO_POSTGRES_DSN", ""),
			Timeout:     duration("INVENTARIO_STORE_TIMEOUT", 10*time.Second),
		},
		Blob: BlobConfig{
			Driver: strings.ToLower(getEnv("INVENTARIO_BLOB_DRIVER", "fs")),
			FSRoot: getEnv("INVENTARIO_BLOB_FS_ROOT", "./blobdata"),
			S3: S3Config{
				Bucket:    getEnv("INVENTARIO_BLOB_S3_BUCKET", ""),
				Region:    getEnv("INVENTARIO_BLOB_S3_REGION", "us-east-1"),
				Endpoint:  getEnv("INVENTARIO_BLOB_S3_ENDPOINT", ""),
				PathStyle: strings.EqualFold(getEnv("INVENTARIO_BLOB_S3_PATH_STYLE", "false"), "true"),
			},
		},
		Redis: RedisConfig{
			Address:       getEnv("INVENTARIO_REDIS_ADDRESS", ""),
			Password:      getEnv("INVENTARIO_REDIS_PASSWORD", ""),
			DB:            integer("INVENTARIO_REDIS_DB", 0),
			SubmissionTTL: duration("INVENTARIO_SUBMISSION_TTL", 30*time.Second),
		},
		Log: LogConfig{
			Level:    strings.ToLower(getEnv("INVENTARIO_LOG_LEVEL", "info")),
			Encoding: strings.ToLower(getEnv("INVENTARIO_LOG_ENCODING", "console")),
		},
		Trace: TraceConfig{
			Path:      getEnv("INVENTARIO_TRACE_PATH", ""),
			Retention: integer("INVENTARIO_TRACE_RETENTION", 256),
		},
		Inventory: InventoryConfig{
			DefaultCategory: getEnv("INVENTARIO_DEFAULT_CATEGORY", "varios"),
			DefaultUser:     getEnv("INVENTARIO_DEFAULT_USER", "admin@kingston.es"),
			SerialStyle:     strings.ToLower(getEnv("INVENTARIO_SERIAL_STYLE", SerialNumeric)),
		},
		Exports: ExportsConfig{
			QueueSize: integer("INVENTARIO_EXPORT_QUEUE", 16),
		},
	}

	switch cfg.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("INVENTARIO_STORAGE_DRIVER: unknown driver %q", cfg.Storage.Driver))
	}
	switch cfg.Inventory.SerialStyle {
	case SerialNumeric, SerialToken:
	default:
		errs = append(errs, fmt.Errorf("INVENTARIO_SERIAL_STYLE: unknown style %q", cfg.Inventory.SerialStyle))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
