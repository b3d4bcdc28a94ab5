package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-geoviz/internal/metrics"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// StateKey is the cache key the snapshot is stored under.
const StateKey = "geoviz:state"

// DefaultDelay is how long autosave waits after the last change.
const DefaultDelay = time.Second

// Persister saves store snapshots to a KV and restores them. With Start it
// also autosaves, debounced, after persisted paths change.
type Persister struct {
	store   *state.Store
	kv      KV
	log     *slog.Logger
	metrics *metrics.Metrics
	delay   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	unsub   func()
}

// Option configures a Persister.
type Option func(*Persister)

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) { p.log = l }
}

// WithMetrics records every snapshot write on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Persister) { p.metrics = m }
}

// WithDelay sets the autosave debounce delay.
func WithDelay(d time.Duration) Option {
	return func(p *Persister) { p.delay = d }
}

// New creates a persister for store over kv.
func New(store *state.Store, kv KV, opts ...Option) *Persister {
	p := &Persister{
		store: store,
		kv:    kv,
		log:   slog.Default(),
		delay: DefaultDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PersistState writes the current snapshot.
func (p *Persister) PersistState(ctx context.Context) error {
	data, err := json.Marshal(p.store.Snapshot())
	if err != nil {
		p.metrics.RecordPersist(err)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = p.kv.Put(ctx, StateKey, data)
	p.metrics.RecordPersist(err)
	if err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot without applying it.
func (p *Persister) Load(ctx context.Context) (state.Snapshot, error) {
	data, err := p.kv.Get(ctx, StateKey)
	if err != nil {
		return state.Snapshot{}, err
	}
	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// RestoreState applies the stored snapshot to the store in one batch. Each
// leaf is validated on its own and invalid leaves are skipped. It reports
// false, leaving the store untouched, when nothing is stored or the stored
// value cannot be read.
func (p *Persister) RestoreState(ctx context.Context) bool {
	data, err := p.kv.Get(ctx, StateKey)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		p.log.Warn("restore state: read failed", "err", err)
		return false
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		p.log.Warn("restore state: decode failed", "err", err)
		return false
	}
	if tree == nil {
		p.log.Warn("restore state: stored snapshot is null")
		return false
	}

	var writes []state.PathValue
	for _, leaf := range state.PersistedLeaves {
		v, ok := lookup(tree, leaf.Segments())
		if !ok {
			continue
		}
		if err := p.store.Validate(leaf, v); err != nil {
			p.log.Warn("restore state: skipping invalid value", "path", leaf, "value", v, "err", err)
			continue
		}
		writes = append(writes, state.PathValue{Path: leaf, Value: v})
	}
	p.store.SetMultiple(writes...)
	p.log.Info("restored state", "values", len(writes))
	return true
}

// ClearPersistedState removes the stored snapshot.
func (p *Persister) ClearPersistedState(ctx context.Context) error {
	if err := p.kv.Delete(ctx, StateKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func lookup(tree map[string]any, segs []string) (any, bool) {
	var cur any = tree
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[s]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Start subscribes to the store and schedules a save after every change to
// a persisted path. Each change restarts the delay.
func (p *Persister) Start() {
	unsub := p.store.Subscribe(state.Wildcard, func(c state.Change) {
		if c.Path.Persisted() {
			p.schedule()
		}
	})
	p.mu.Lock()
	p.unsub = unsub
	p.mu.Unlock()
}

func (p *Persister) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, p.flush)
}

func (p *Persister) flush() {
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return
	}
	p.pending = false
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.PersistState(ctx); err != nil {
		p.log.Warn("autosave failed", "err", err)
	}
}

// Close stops autosaving and writes any pending change.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	p.flush()
}
