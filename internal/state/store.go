package state

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Store owns the state tree. Every read and write goes through it, and it
// fans change notifications out to exact-path, parent-path and wildcard
// subscribers.
//
// Listeners are invoked from the goroutine that performed the write, with no
// store lock held, so a listener may write back into the store.
type Store struct {
	mu    sync.Mutex
	state State

	subs    map[Path][]*subscription
	settled []*subscription
	nextID  int

	depth      int
	pending    []Path
	pendingSet map[Path]struct{}

	history   *ring[HistoryEntry]
	historyOn bool

	log      *slog.Logger
	onReject func(p Path, v any, err error)
}

type subscription struct {
	id int
	fn func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for rejected writes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithRejectHook is called for every write refused by SetValidated.
func WithRejectHook(fn func(p Path, v any, err error)) Option {
	return func(s *Store) { s.onReject = fn }
}

// WithInitial replaces the default starting state.
func WithInitial(st State) Option {
	return func(s *Store) { s.state = st }
}

// New creates a store holding Defaults.
func New(opts ...Option) *Store {
	s := &Store{
		state: Defaults(),
		subs:  make(map[Path][]*subscription),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value at p. ok is false for unknown paths.
func (s *Store) Get(p Path) (any, bool) {
	acc, ok := accessors[p]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return acc.get(&s.state), true
}

// Value is a typed Get.
func Value[T any](s *Store, p Path) (T, bool) {
	v, ok := s.Get(p)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set writes v at p. Writing a value Same as the current one is a no-op and
// notifies nobody. Setting a compound path also notifies the children whose
// values changed.
func (s *Store) Set(p Path, v any) error {
	acc, ok := accessors[p]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, p)
	}

	s.mu.Lock()
	next := s.state
	if !acc.set(&next, v) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s = %v (%T)", ErrTypeMismatch, p, v, v)
	}
	if Same(acc.get(&s.state), acc.get(&next)) {
		s.mu.Unlock()
		return nil
	}

	changed := []Path{p}
	for _, child := range p.Children() {
		c := accessors[child]
		if !Same(c.get(&s.state), c.get(&next)) {
			changed = append(changed, child)
		}
	}
	s.state = next

	if s.depth > 0 {
		for _, c := range changed {
			s.markPendingLocked(c)
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.notify(changed)
	return nil
}

// SetValidated validates then writes. It reports whether the write happened;
// rejected values are logged and leave the state untouched.
func (s *Store) SetValidated(p Path, v any) bool {
	if err := s.Validate(p, v); err != nil {
		s.reject(p, v, err)
		return false
	}
	if err := s.Set(p, v); err != nil {
		s.reject(p, v, err)
		return false
	}
	return true
}

// SetValidatedMultiple validates every pair first and applies them in one
// batch only if all pass. It returns the rejected paths.
func (s *Store) SetValidatedMultiple(pvs ...PathValue) []Path {
	var rejected []Path
	for _, pv := range pvs {
		if !pv.Path.Known() {
			s.reject(pv.Path, pv.Value, fmt.Errorf("%w: %q", ErrUnknownPath, pv.Path))
			rejected = append(rejected, pv.Path)
			continue
		}
		if err := s.Validate(pv.Path, pv.Value); err != nil {
			s.reject(pv.Path, pv.Value, err)
			rejected = append(rejected, pv.Path)
		}
	}
	if len(rejected) > 0 {
		return rejected
	}
	s.SetMultiple(pvs...)
	return nil
}

// Validate checks v against the predicate table without writing.
func (s *Store) Validate(p Path, v any) error {
	return Validate(p, v)
}

func (s *Store) reject(p Path, v any, err error) {
	s.log.Warn("state write rejected", "path", p, "value", v, "err", err)
	if s.onReject != nil {
		s.onReject(p, v, err)
	}
}

// Batch runs fn with notifications deferred. Each distinct path touched
// fires once, in first-touched order, with its final value. Nested batches
// flush when the outermost returns. Pending notifications are flushed even
// if fn panics; the panic is then re-raised.
func (s *Store) Batch(fn func()) {
	s.mu.Lock()
	s.depth++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.depth--
		var pending []Path
		if s.depth == 0 {
			pending = s.pending
			s.pending = nil
			s.pendingSet = nil
		}
		s.mu.Unlock()
		if len(pending) > 0 {
			s.notify(pending)
		}
	}()

	fn()
}

// SetMultiple applies the writes in order inside one batch. Writes that fail
// are logged and skipped.
func (s *Store) SetMultiple(pvs ...PathValue) {
	s.Batch(func() {
		for _, pv := range pvs {
			if err := s.Set(pv.Path, pv.Value); err != nil {
				s.log.Warn("state write failed", "path", pv.Path, "err", err)
			}
		}
	})
}

func (s *Store) markPendingLocked(p Path) {
	if s.pendingSet == nil {
		s.pendingSet = make(map[Path]struct{})
	}
	if _, seen := s.pendingSet[p]; seen {
		return
	}
	s.pendingSet[p] = struct{}{}
	s.pending = append(s.pending, p)
}

// Subscribe registers fn for changes at p. p may be a leaf, a compound
// parent or Wildcard. The returned func removes the subscription.
func (s *Store) Subscribe(p Path, fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &subscription{id: s.nextID, fn: fn}
	s.subs[p] = append(s.subs[p], sub)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs[p] = removeSub(s.subs[p], sub.id)
	}
}

// OnSettled registers fn to run once after every notification round: a
// single unbatched write, or the flush of an outermost batch.
func (s *Store) OnSettled(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &subscription{id: s.nextID, fn: func(Change) { fn() }}
	s.settled = append(s.settled, sub)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.settled = removeSub(s.settled, sub.id)
	}
}

func removeSub(subs []*subscription, id int) []*subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

type delivery struct {
	fn     func(Change)
	change Change
}

// notify delivers one round for the changed paths. Exact and parent
// subscribers fire at most once per round; wildcard subscribers fire once per
// changed path.
func (s *Store) notify(changed []Path) {
	s.mu.Lock()
	var out []delivery
	fired := make(map[int]struct{})
	now := time.Now()

	for _, p := range changed {
		value := accessors[p].get(&s.state)
		for _, sub := range s.subs[p] {
			if _, done := fired[sub.id]; !done {
				fired[sub.id] = struct{}{}
				out = append(out, delivery{sub.fn, Change{Path: p, Value: value}})
			}
		}
		for parent := p.Parent(); parent != ""; parent = parent.Parent() {
			pv := accessors[parent].get(&s.state)
			for _, sub := range s.subs[parent] {
				if _, done := fired[sub.id]; !done {
					fired[sub.id] = struct{}{}
					out = append(out, delivery{sub.fn, Change{Path: parent, Value: pv}})
				}
			}
		}
		for _, sub := range s.subs[Wildcard] {
			out = append(out, delivery{sub.fn, Change{Path: p, Value: value}})
		}
		if s.historyOn {
			s.history.push(HistoryEntry{Timestamp: now, Path: p, Value: value})
		}
	}
	settled := append([]*subscription(nil), s.settled...)
	s.mu.Unlock()

	for _, d := range out {
		d.fn(d.change)
	}
	for _, sub := range settled {
		sub.fn(Change{})
	}
}

// SetDataset replaces rawData and derivedCollection together in one batch.
func (s *Store) SetDataset(points []LocationPoint, fc *geojson.FeatureCollection) {
	s.SetMultiple(
		PathValue{Path: PathRawData, Value: points},
		PathValue{Path: PathDerivedCollection, Value: fc},
	)
}

// Snapshot returns a deep copy of the persisted subset of the state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.state)
}

// State returns a copy of the whole tree. Slices and the collection are
// shared and must be treated as read-only.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset restores every persisted field to its default in one batch and
// clears the auto-switch flag. The dataset is kept.
func (s *Store) Reset() {
	d := Defaults()
	s.SetMultiple(
		PathValue{Path: PathMode, Value: d.Mode},
		PathValue{Path: PathAutoSwitched, Value: false},
		PathValue{Path: PathFilters, Value: d.Filters},
		PathValue{Path: PathCluster, Value: d.Cluster},
		PathValue{Path: PathHeatmap, Value: d.Heatmap},
		PathValue{Path: PathMarkers, Value: d.Markers},
		PathValue{Path: PathColors, Value: d.Colors},
	)
}

// Mode is the active visualization mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode
}

// Filters returns the current volume and category filters.
func (s *Store) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Filters
}

// Points returns the raw dataset. The slice is shared and must not be modified.
func (s *Store) Points() []LocationPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RawData
}

// AutoSwitched reports whether zooming out moved markers mode to clusters.
func (s *Store) AutoSwitched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AutoSwitched
}
