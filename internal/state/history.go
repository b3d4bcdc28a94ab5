package state

import "time"

// HistoryCapacity bounds the change history.
const HistoryCapacity = 100

// HistoryEntry records one notified change.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp" doc:"When the change was notified"`
	Path      Path      `json:"path" doc:"Changed path"`
	Value     any       `json:"value" doc:"New value"`
}

// ring is a fixed-size circular buffer; the oldest entry is overwritten
// once full. Not safe for concurrent use.
type ring[T any] struct {
	data  []T
	head  int // next write position
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// last returns up to n items, oldest first. n <= 0 returns everything.
func (r *ring[T]) last(n int) []T {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, n)
	start := r.head - n
	if start < 0 {
		start += len(r.data)
	}
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

func (r *ring[T]) clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head, r.count = 0, 0
}

// EnableHistory starts recording every notified change.
func (s *Store) EnableHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		s.history = newRing[HistoryEntry](HistoryCapacity)
	}
	s.historyOn = true
}

// DisableHistory stops recording; recorded entries are kept.
func (s *Store) DisableHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyOn = false
}

// HistoryEnabled reports whether changes are being recorded.
func (s *Store) HistoryEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyOn
}

// History returns up to limit recorded entries, oldest first.
// A limit <= 0 returns all of them.
func (s *Store) History(limit int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return nil
	}
	return s.history.last(limit)
}

// ClearHistory drops every recorded entry.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history != nil {
		s.history.clear()
	}
}
