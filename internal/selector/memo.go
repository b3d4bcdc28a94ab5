package selector

import (
	"sync"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

// Memo caches the result of compute until the sequence returned by deps
// changes. Dependencies are compared element-wise with state.Same, so a new
// slice with equal contents still counts as a change.
type Memo[T any] struct {
	mu      sync.Mutex
	compute func() T
	deps    func() []any

	last  []any
	value T
	valid bool
	runs  int
}

// NewMemo wraps compute. deps must not mutate anything.
func NewMemo[T any](compute func() T, deps func() []any) *Memo[T] {
	return &Memo[T]{compute: compute, deps: deps}
}

// Get returns the cached value, recomputing first if the dependencies moved.
func (m *Memo[T]) Get() T {
	d := m.deps()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && state.SameSeq(m.last, d) {
		return m.value
	}
	m.value = m.compute()
	m.last = d
	m.valid = true
	m.runs++
	return m.value
}

// Runs reports how many times compute has been invoked.
func (m *Memo[T]) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Invalidate forces the next Get to recompute.
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
	m.last = nil
}
