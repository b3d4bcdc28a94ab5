// Package engine keeps the server-side mirror of the browser's MapLibre
// style. Every mutation is published as an Op so connected panels can replay
// it against the real map.
package engine

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joeblew999/plat-geoviz/internal/events"
	"github.com/joeblew999/plat-geoviz/internal/layers"
)

var (
	ErrLayerExists   = errors.New("layer already exists")
	ErrNoLayer       = errors.New("layer does not exist")
	ErrSourceExists  = errors.New("source already exists")
	ErrNoSource      = errors.New("source does not exist")
	ErrSourceInUse   = errors.New("source is used by a layer")
	ErrStyleNotReady = errors.New("style is not loaded")
)

// OpKind names one style mutation.
type OpKind string

const (
	OpAddSource    OpKind = "addSource"
	OpRemoveSource OpKind = "removeSource"
	OpAddLayer     OpKind = "addLayer"
	OpRemoveLayer  OpKind = "removeLayer"
	OpSetPaint     OpKind = "setPaintProperty"
	OpReset        OpKind = "reset"
	// OpResync tells a follower to drop its layers and sources; the
	// replay that follows rebuilds them.
	OpResync OpKind = "resync"
)

// Op is one applied mutation, in the shape the browser replays.
type Op struct {
	Seq      uint64             `json:"seq"`
	Kind     OpKind             `json:"op"`
	ID       string             `json:"id,omitempty"`
	Source   *layers.SourceSpec `json:"source,omitempty"`
	Layer    *layers.Spec       `json:"layer,omitempty"`
	BeforeID string             `json:"beforeId,omitempty"`
	Property string             `json:"property,omitempty"`
	Value    any                `json:"value,omitempty"`
}

// Style is an in-memory MapLibre style: an ordered layer list plus sources.
// It enforces the same rules the browser does, so a sequence accepted here
// replays cleanly there.
type Style struct {
	mu      sync.Mutex
	ready   bool
	seq     uint64
	layers  []layers.Spec
	sources map[string]layers.SourceSpec

	readyFns map[int]func()
	nextFn   int

	ops *events.Bus[Op]
}

// NewStyle creates an empty style that is not yet ready.
func NewStyle() *Style {
	return &Style{
		sources:  make(map[string]layers.SourceSpec),
		readyFns: make(map[int]func()),
		ops:      events.New[Op](),
	}
}

// Ops is the bus every applied mutation is published on.
func (s *Style) Ops() *events.Bus[Op] { return s.ops }

func (s *Style) publishLocked(op Op) {
	s.seq++
	op.Seq = s.seq
	s.ops.Publish(op)
}

// AddSource adds a source under id.
func (s *Style) AddSource(id string, src layers.SourceSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrStyleNotReady
	}
	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	s.sources[id] = src
	s.publishLocked(Op{Kind: OpAddSource, ID: id, Source: &src})
	return nil
}

// RemoveSource removes the source id. It fails while a layer references it.
func (s *Style) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	for _, l := range s.layers {
		if l.Source == id {
			return fmt.Errorf("%w: %s by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(s.sources, id)
	s.publishLocked(Op{Kind: OpRemoveSource, ID: id})
	return nil
}

// AddLayer appends spec, or inserts it below beforeID when that is set.
func (s *Style) AddLayer(spec layers.Spec, beforeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrStyleNotReady
	}
	if s.indexLocked(spec.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, spec.ID)
	}
	if _, ok := s.sources[spec.Source]; !ok {
		return fmt.Errorf("%w: %s (layer %s)", ErrNoSource, spec.Source, spec.ID)
	}
	at := len(s.layers)
	if beforeID != "" {
		if at = s.indexLocked(beforeID); at < 0 {
			return fmt.Errorf("%w: %s", ErrNoLayer, beforeID)
		}
	}
	s.layers = slices.Insert(s.layers, at, spec)
	s.publishLocked(Op{Kind: OpAddLayer, ID: spec.ID, Layer: &spec, BeforeID: beforeID})
	return nil
}

// RemoveLayer removes the layer id.
func (s *Style) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoLayer, id)
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	s.publishLocked(Op{Kind: OpRemoveLayer, ID: id})
	return nil
}

// SetPaintProperty sets one paint property of an existing layer.
func (s *Style) SetPaintProperty(layerID, prop string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(layerID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoLayer, layerID)
	}
	paint := make(map[string]any, len(s.layers[i].Paint)+1)
	for k, v := range s.layers[i].Paint {
		paint[k] = v
	}
	paint[prop] = value
	s.layers[i].Paint = paint
	s.publishLocked(Op{Kind: OpSetPaint, ID: layerID, Property: prop, Value: value})
	return nil
}

func (s *Style) HasLayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

func (s *Style) HasSource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[id]
	return ok
}

func (s *Style) IsStyleReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// OnStyleReady registers fn to run every time the style becomes ready.
func (s *Style) OnStyleReady(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFn++
	id := s.nextFn
	s.readyFns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.readyFns, id)
	}
}

// MarkReady flags the style as loaded and runs the ready callbacks. Calling
// it on an already ready style does nothing.
func (s *Style) MarkReady() {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = true
	fns := make([]func(), 0, len(s.readyFns))
	for _, id := range sortedKeys(s.readyFns) {
		fns = append(fns, s.readyFns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Reset drops every layer and source and marks the style not ready, as a
// browser reload does.
func (s *Style) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.layers = nil
	s.sources = make(map[string]layers.SourceSpec)
	s.publishLocked(Op{Kind: OpReset})
}

// Layers returns a copy of the layer list in draw order.
func (s *Style) Layers() []layers.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.layers)
}

// LayerIDs returns the layer ids in draw order.
func (s *Style) LayerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.layers))
	for i, l := range s.layers {
		ids[i] = l.ID
	}
	return ids
}

// Source returns the source id, if present.
func (s *Style) Source(id string) (layers.SourceSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	return src, ok
}

// Replay returns the ops that rebuild the current style from empty. A newly
// connected panel applies these before live ops.
func (s *Style) Replay() []Op {
	_, ops := s.Checkpoint()
	return ops
}

// Seq is the number of the last published op.
func (s *Style) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Checkpoint returns the current sequence number with the replay ops for it,
// taken under one lock. Live ops numbered above seq follow the replay.
func (s *Style) Checkpoint() (seq uint64, ops []Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sortedKeys(s.sources) {
		src := s.sources[id]
		ops = append(ops, Op{Seq: s.seq, Kind: OpAddSource, ID: id, Source: &src})
	}
	for i := range s.layers {
		l := s.layers[i]
		ops = append(ops, Op{Seq: s.seq, Kind: OpAddLayer, ID: l.ID, Layer: &l})
	}
	return s.seq, ops
}

func (s *Style) indexLocked(id string) int {
	return slices.IndexFunc(s.layers, func(l layers.Spec) bool { return l.ID == id })
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
