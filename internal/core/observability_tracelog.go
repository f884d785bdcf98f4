package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventario/pkg/domain"
)

// Trace outcomes. Anything that is not a domain error is OutcomeTransport,
// matching what classify returns to callers.
const (
	OutcomeOK           = "ok"
	OutcomeValidation   = "validation"
	OutcomeNotFound     = "not_found"
	OutcomeIntegrity    = "integrity"
	OutcomeConfirmation = "confirmation_required"
	OutcomeRuleBlocked  = "rule_blocked"
	OutcomeDuplicate    = "duplicate"
	OutcomeTransport    = "transport"
)

// DefaultTraceRetention bounds the spans a TraceLog keeps in memory.
const DefaultTraceRetention = 256

// Outcome names the error class of err as it appears in a trace.
func Outcome(err error) string {
	var (
		validation   domain.ValidationError
		notFound     domain.NotFoundError
		integrity    domain.IntegrityError
		confirmation domain.ConfirmationRequiredError
		violation    domain.RuleViolationError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return OutcomeDuplicate
	case errors.As(err, &validation):
		return OutcomeValidation
	case errors.As(err, &notFound):
		return OutcomeNotFound
	case errors.As(err, &integrity):
		return OutcomeIntegrity
	case errors.As(err, &confirmation):
		return OutcomeConfirmation
	case errors.As(err, &violation):
		return OutcomeRuleBlocked
	default:
		return OutcomeTransport
	}
}

// TraceRecord is one finished span.
type TraceRecord struct {
	SpanID    string    `json:"span_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Operation string    `json:"operation"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Start     time.Time `json:"start"`
	ElapsedMS float64   `json:"elapsed_ms"`
}

// TraceLog is a Tracer that appends finished spans to w as JSON lines and keeps
// the latest ones in a fixed ring. Spans started from a context carrying
// another span record it as their parent.
type TraceLog struct {
	mu    sync.Mutex
	out   io.Writer
	ring  []TraceRecord
	next  int
	full  bool
	now   func() time.Time
	newID func() string
}

// NewTraceLog writes to w (nil keeps spans in memory only) and retains up to
// retain spans, DefaultTraceRetention when retain is not positive.
func NewTraceLog(w io.Writer, retain int) *TraceLog {
	if retain <= 0 {
		retain = DefaultTraceRetention
	}
	return &TraceLog{
		out:   w,
		ring:  make([]TraceRecord, retain),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

type spanContextKey struct{}

// Start opens a span for operation.
func (l *TraceLog) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	rec := TraceRecord{SpanID: l.newID(), Operation: operation, Start: l.now()}
	if parent, ok := ctx.Value(spanContextKey{}).(string); ok {
		rec.ParentID = parent
	}
	return context.WithValue(ctx, spanContextKey{}, rec.SpanID), &traceSpan{log: l, rec: rec}
}

// Recent returns the retained spans, oldest first.
func (l *TraceLog) Recent() []TraceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]TraceRecord(nil), l.ring[:l.next]...)
	}
	out := make([]TraceRecord, 0, len(l.ring))
	out = append(out, l.ring[l.next:]...)
	return append(out, l.ring[:l.next]...)
}

func (l *TraceLog) append(rec TraceRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring[l.next] = rec
	l.next = (l.next + 1) % len(l.ring)
	if l.next == 0 {
		l.full = true
	}
	if l.out == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_, _ = l.out.Write(append(line, '\n'))
}

type traceSpan struct {
	log  *TraceLog
	rec  TraceRecord
	once sync.Once
}

// End closes the span; later calls are ignored.
func (s *traceSpan) End(err error) {
	s.once.Do(func() {
		rec := s.rec
		rec.ElapsedMS = float64(s.log.now().Sub(rec.Start)) / float64(time.Millisecond)
		rec.Outcome = Outcome(err)
		if err != nil {
			rec.Error = err.Error()
		}
		s.log.append(rec)
	})
}
