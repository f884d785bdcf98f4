package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"inventario/internal/infra/lock"
	"inventario/internal/infra/persistence/memory"
	"inventario/pkg/domain"
)

const (
	// DefaultUserEmail identifies the actor when a request carries none.
	DefaultUserEmail = "admin@kingston.es"
	// DefaultStoreTimeout bounds each call into the data-access collaborator.
	DefaultStoreTimeout = 10 * time.Second
)

// SubmissionGuard rejects a write while an identical one is in flight.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Inventory is the in-memory snapshot the service reads from between writes.
type Inventory struct {
	Equipment []domain.Equipment      `json:"equipment"`
	Locations []domain.Location       `json:"locations"`
	History   []domain.MovementRecord `json:"history"`
	LoadedAt  time.Time               `json:"loaded_at"`
}

func (inv Inventory) clone() Inventory {
	out := Inventory{
		Equipment: make([]domain.Equipment, len(inv.Equipment)),
		Locations: append([]domain.Location(nil), inv.Locations...),
		History:   append([]domain.MovementRecord(nil), inv.History...),
		LoadedAt:  inv.LoadedAt,
	}
	for i, item := range inv.Equipment {
		if item.ParentID != nil {
			id := *item.ParentID
			item.ParentID = &id
		}
		out.Equipment[i] = item
	}
	return out
}

// Service is the entity store and transfer orchestrator over a PersistentStore.
type Service struct {
	store domain.PersistentStore

	logger  *zap.Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	guard   SubmissionGuard
	timeout time.Duration
	now     func() time.Time

	defaultUser     string
	defaultCategory domain.Category
	serials         SerialGenerator

	mu        sync.RWMutex
	inventory Inventory
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSubmissionGuard replaces the in-process guard, e.g. with a Redis one.
func WithSubmissionGuard(guard SubmissionGuard) Option {
	return func(s *Service) {
		if guard != nil {
			s.guard = guard
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock sets the clock used for audit timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDefaultUser(email string) Option {
	return func(s *Service) {
		if email != "" {
			s.defaultUser = email
		}
	}
}

// WithDefaultCategory sets the category given to new items that omit one.
// Unknown categories are ignored.
func WithDefaultCategory(c domain.Category) Option {
	return func(s *Service) {
		if c.Valid() {
			s.defaultCategory = c
		}
	}
}

func WithSerialGenerator(gen SerialGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.serials = gen
		}
	}
}

// NewService constructs a service backed by store. The inventory snapshot is
// empty until Refresh is called.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:           store,
		logger:          zap.NewNop(),
		audit:           noopAudit{},
		metrics:         noopMetrics{},
		tracer:          noopTracer{},
		guard:           lock.NewMemory(),
		timeout:         DefaultStoreTimeout,
		now:             time.Now,
		defaultUser:     DefaultUserEmail,
		defaultCategory: domain.CategoryMisc,
		serials:         NumericSerials(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying data-access collaborator.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Inventory returns a copy of the current snapshot.
func (s *Service) Inventory() Inventory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventory.clone()
}

// Refresh re-reads every collection into the inventory snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	return s.observe(ctx, "refresh", func(ctx context.Context) error {
		return s.reload(ctx)
	})
}

func (s *Service) reload(ctx context.Context) error {
	var next Inventory
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		next.Equipment = view.ListEquipment()
		next.Locations = view.ListLocations()
		next.History = view.ListMovements()
		return nil
	})
	if err != nil {
		return err
	}
	domain.SortHistory(next.History)
	next.LoadedAt = s.now().UTC()
	s.mu.Lock()
	s.inventory = next
	s.mu.Unlock()
	return nil
}

// afterWrite refreshes the snapshot once a write committed. The write already
// succeeded, so a failed reload is logged rather than returned.
func (s *Service) afterWrite(ctx context.Context, op string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.reload(ctx); err != nil {
		s.logger.Error("refresh after write failed", zap.String("operation", op), zap.Error(err))
	}
}

// observe runs a read operation under the store timeout with tracing and metrics.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := classify(op, fn(callCtx))
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	if err != nil {
		s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// write describes one audited mutation.
type write struct {
	op     string
	entity domain.EntityType
	actor  string
	key    string // submission guard key, empty disables the guard
}

// mutate runs fn as an audited write: guard, timeout, tracing, metrics, audit
// and a refresh on success. fn returns the id of the affected record.
func (s *Service) mutate(ctx context.Context, w write, fn func(context.Context) (int64, error)) error {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, w.op)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var id int64
	err := func() error {
		if w.key != "" {
			release, err := s.guard.Acquire(callCtx, w.key)
			if err != nil {
				return err
			}
			defer release()
		}
		var err error
		id, err = fn(callCtx)
		return err
	}()
	err = classify(w.op, err)

	duration := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, w.op, err == nil, duration)
	entry := AuditEntry{
		Operation: w.op,
		Entity:    w.entity,
		EntityID:  id,
		Actor:     w.actor,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		At:        start.UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.audit.Record(ctx, entry)
		s.logger.Error("write failed", zap.String("operation", w.op), zap.Int64("id", id), zap.Error(err))
		return err
	}
	s.audit.Record(ctx, entry)
	s.logger.Info("write committed", zap.String("operation", w.op), zap.Int64("id", id))
	s.afterWrite(ctx, w.op)
	return nil
}

// classify passes domain errors through and turns everything else (backend
// failures, deadlines, cancellation) into a TransportError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		validation   domain.ValidationError
		notFound     domain.NotFoundError
		integrity    domain.IntegrityError
		confirmation domain.ConfirmationRequiredError
		violation    domain.RuleViolationError
		transport    domain.TransportError
	)
	switch {
	case errors.Is(err, domain.ErrDuplicateSubmission),
		errors.As(err, &validation),
		errors.As(err, &notFound),
		errors.As(err, &integrity),
		errors.As(err, &confirmation),
		errors.As(err, &violation),
		errors.As(err, &transport):
		return err
	}
	return domain.TransportError{Op: op, Err: err}
}

func (s *Service) actor(email string) string {
	if email == "" {
		return s.defaultUser
	}
	return email
}
