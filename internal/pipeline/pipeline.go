// Package pipeline is the only writer of the rendering engine's layers and
// sources. It turns the current mode, filters and settings into a full
// remove-then-add rebuild, or a paint-only update for slider changes.
package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/metrics"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// Engine is the rendering engine the pipeline drives.
type Engine interface {
	AddSource(id string, src layers.SourceSpec) error
	RemoveSource(id string) error
	AddLayer(spec layers.Spec, beforeID string) error
	RemoveLayer(id string) error
	SetPaintProperty(layerID, prop string, value any) error
	HasLayer(id string) bool
	HasSource(id string) bool
	IsStyleReady() bool
	OnStyleReady(fn func()) (cancel func())
}

// Pipeline rebuilds engine layers from store state.
type Pipeline struct {
	mu      sync.Mutex
	store   *state.Store
	sel     *selector.Selectors
	engine  Engine
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics records rebuilds on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New wires a pipeline over store, its selectors and engine.
func New(store *state.Store, sel *selector.Selectors, engine Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		sel:    sel,
		engine: engine,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the engine being driven.
func (p *Pipeline) Engine() Engine { return p.engine }

// RebuildForMode removes every known layer and the shared source, then adds
// the source and the current mode's layers again. It returns the number of
// features drawn.
//
// Nothing is touched if the engine is not ready. When the filters exclude
// every point the old layers are still removed and the map is left empty.
func (p *Pipeline) RebuildForMode() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.engine.IsStyleReady() {
		p.log.Warn("rebuild skipped: style not ready")
		p.metrics.RecordSkip("not_ready")
		return 0
	}
	start := time.Now()

	p.teardown()

	fc, ok := p.sel.FilteredCollection()
	if !ok {
		p.log.Warn("rebuild skipped: no filtered data", "filters", p.store.Filters())
		p.metrics.RecordSkip("empty")
		return 0
	}

	cfg := p.sel.CurrentLayerConfig()
	specs, err := layers.Build(cfg)
	if err != nil {
		p.log.Warn("rebuild skipped: no layers for mode", "mode", p.store.Mode(), "err", err)
		p.metrics.RecordSkip("unknown_mode")
		return 0
	}
	mode := cfg.ConfigMode()

	src := layers.NewSource(mode, fc, p.store.State().Cluster)
	if err := p.engine.AddSource(layers.SourceID, src); err != nil {
		p.log.Error("add source failed", "source", layers.SourceID, "err", err)
		return 0
	}
	for _, spec := range specs {
		if err := p.engine.AddLayer(spec, ""); err != nil {
			p.log.Error("add layer failed", "layer", spec.ID, "err", err)
		}
	}

	n := len(fc.Features)
	p.metrics.RecordRebuild(string(mode), n, time.Since(start).Seconds())
	p.log.Debug("rebuilt layers", "mode", mode, "layers", len(specs), "features", n)
	return n
}

// teardown removes layers before the source, since a source cannot be
// removed while referenced.
func (p *Pipeline) teardown() {
	for _, id := range layers.AllIDs {
		if !p.engine.HasLayer(id) {
			continue
		}
		if err := p.engine.RemoveLayer(id); err != nil {
			p.log.Error("remove layer failed", "layer", id, "err", err)
		}
	}
	if p.engine.HasSource(layers.SourceID) {
		if err := p.engine.RemoveSource(layers.SourceID); err != nil {
			p.log.Error("remove source failed", "source", layers.SourceID, "err", err)
		}
	}
}

// UpdateClusterOpacity sets the opacity of whichever cluster layers are
// present. It returns the number of properties set.
func (p *Pipeline) UpdateClusterOpacity(opacity float64) int {
	return p.applyPaint(layers.ClusterOpacity(opacity))
}

// UpdateHeatmapProperties sets intensity, radius and opacity on the heatmap
// layer if it is present.
func (p *Pipeline) UpdateHeatmapProperties(h state.HeatmapSettings) int {
	return p.applyPaint(layers.HeatmapPaint(h))
}

func (p *Pipeline) applyPaint(updates []layers.PaintUpdate) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, u := range updates {
		if !p.engine.HasLayer(u.LayerID) {
			continue
		}
		if err := p.engine.SetPaintProperty(u.LayerID, u.Property, u.Value); err != nil {
			p.log.Warn("paint update failed", "layer", u.LayerID, "property", u.Property, "err", err)
			continue
		}
		p.metrics.RecordPaint(u.LayerID)
		n++
	}
	return n
}
