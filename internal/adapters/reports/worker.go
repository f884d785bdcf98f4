// Package reports renders inventory and movement history exports
// asynchronously and stores the artifacts in a blob store.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inventario/internal/blob"
	"inventario/internal/core"
	"inventario/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// EntityExport identifies export records in errors.
const EntityExport domain.EntityType = "export"

// DefaultQueueSize bounds pending export requests.
const DefaultQueueSize = 16

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored rendering of an export.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// Input is an enqueue request.
type Input struct {
	Kind        Kind
	Formats     []Format
	RequestedBy string
}

// Source provides the inventory snapshot an export renders.
type Source interface {
	Inventory() core.Inventory
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithMetricsRecorder reports one observation per finished export.
func WithMetricsRecorder(rec core.MetricsRecorder) Option {
	return func(w *Worker) {
		if rec != nil {
			w.metrics = rec
		}
	}
}

// WithClock overrides the worker time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// Worker executes exports in the background.
type Worker struct {
	source    Source
	store     blob.Store
	logger    *zap.Logger
	metrics   core.MetricsRecorder
	now       func() time.Time
	queueSize int

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id        string
	inventory core.Inventory
}

// NewWorker constructs an export worker. Call Start to begin processing.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:    source,
		store:     store,
		logger:    zap.NewNop(),
		now:       time.Now,
		queueSize: DefaultQueueSize,
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("reports")
	w.queue = make(chan task, w.queueSize)
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current export.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates input, snapshots the inventory and schedules the export.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	if !input.Kind.Valid() {
		return Record{}, domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown export kind %q", input.Kind)}
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatXLSX, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, format := range formats {
		if !format.Valid() {
			return Record{}, domain.ValidationError{Field: "formats", Message: fmt.Sprintf("unsupported format %q", format)}
		}
		if _, dup := seen[format]; dup {
			continue
		}
		seen[format] = struct{}{}
		uniq = append(uniq, format)
	}

	now := w.now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		Kind:        input.Kind,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	select {
	case w.queue <- task{id: record.ID, inventory: w.source.Inventory()}:
	default:
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.logger.Info("export queued", zap.String("id", record.ID), zap.String("kind", string(record.Kind)), zap.String("requested_by", record.RequestedBy))
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// Open streams the artifact of export id in format. The caller closes the reader.
func (w *Worker) Open(ctx context.Context, id string, format Format) (Artifact, io.ReadCloser, error) {
	record, ok := w.Get(id)
	if !ok {
		return Artifact{}, nil, domain.NotFoundError{Entity: EntityExport, Name: id}
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format != format {
			continue
		}
		_, body, err := w.store.Get(ctx, artifact.Key)
		if err != nil {
			return Artifact{}, nil, fmt.Errorf("open artifact %s: %w", artifact.Key, err)
		}
		return artifact, body, nil
	}
	return Artifact{}, nil, domain.NotFoundError{Entity: EntityExport, Name: fmt.Sprintf("%s/%s", id, format)}
}

// Key returns the blob key of an export artifact.
func Key(id string, kind Kind, format Format) string {
	return fmt.Sprintf("exports/%s/%s.%s", id, kind, format)
}

func (w *Worker) process(t task) {
	start := w.now()
	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	w.setStatus(t.id, StatusRunning, "")

	data, err := buildTable(record.Kind, t.inventory)
	if err != nil {
		w.fail(t.id, start, err)
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.storeArtifact(t.id, record.Kind, format, data)
		if err != nil {
			w.fail(t.id, start, err)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(t.id, start, artifacts)
}

// storeArtifact renders one format and writes it under its immutable key.
func (w *Worker) storeArtifact(id string, kind Kind, format Format, data table) (Artifact, error) {
	payload, err := render(format, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	key := Key(id, kind, format)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata:    map[string]string{"kind": string(kind), "rows": fmt.Sprint(len(data.rows))},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", key, err)
	}
	artifact := Artifact{
		Format:      format,
		Key:         key,
		ContentType: format.ContentType(),
		SizeBytes:   info.Size,
		Rows:        len(data.rows),
		CreatedAt:   w.now().UTC(),
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(payload))
	}
	url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{Method: "GET"})
	switch {
	case err == nil:
		artifact.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		w.logger.Warn("presign artifact failed", zap.String("key", key), zap.Error(err))
	}
	return artifact, nil
}

func (w *Worker) setStatus(id string, status Status, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = w.now().UTC()
	}
}

func (w *Worker) complete(id string, start time.Time, artifacts []Artifact) {
	now := w.now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.observe(true, start)
	w.logger.Info("export succeeded", zap.String("id", id), zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id string, start time.Time, err error) {
	now := w.now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.observe(false, start)
	w.logger.Error("export failed", zap.String("id", id), zap.Error(err))
}

func (w *Worker) observe(success bool, start time.Time) {
	if w.metrics != nil {
		w.metrics.Observe(w.ctx, "export", success, w.now().Sub(start))
	}
}
