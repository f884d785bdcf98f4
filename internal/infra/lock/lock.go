// Package lock provides submission guards that reject a write while an
// identical one is still in flight.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"

	"inventario/pkg/domain"
)

// Guard admits one holder per key. Acquire returns domain.ErrDuplicateSubmission
// when the key is already held; the returned release func is idempotent.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key derives a stable guard key from an operation name and its inputs.
// Id order does not matter.
func Key(op string, ids []int64, parts ...string) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var b strings.Builder
	b.WriteString(op)
	for _, id := range sorted {
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	for _, p := range parts {
		b.WriteByte('#')
		b.WriteString(p)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return op + ":" + hex.EncodeToString(sum[:8])
}

// Memory is a process-local Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory returns an empty in-process guard.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, domain.ErrDuplicateSubmission
	}
	m.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}
