// Package viewer binds the store to the layer pipeline: state changes become
// one rebuild per notification round, slider changes become paint updates,
// and zoom can switch between markers and clusters.
package viewer

import (
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/metrics"
	"github.com/joeblew999/plat-geoviz/internal/pipeline"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// AutoClusterZoom is the zoom below which markers mode switches to clusters.
const AutoClusterZoom = 8

// rebuildPaths require a full rebuild when they change.
var rebuildPaths = []state.Path{
	state.PathMode,
	state.PathRawData,
	state.PathFilterVolume,
	state.PathFilterCategory,
	state.PathClusterSizeMetric,
	state.PathClusterColorMetric,
	state.PathClusterRadius,
	state.PathClusterMaxZoom,
	state.PathHeatmapMetric,
	state.PathMarkersIcon,
	state.PathMarkersBaseSize,
	state.PathMarkersScaleByVolume,
	state.PathColorsPrimary,
	state.PathColorsSecondary,
}

var heatmapPaintPaths = []state.Path{
	state.PathHeatmapIntensity,
	state.PathHeatmapRadius,
	state.PathHeatmapOpacity,
}

// Controller reacts to store changes.
type Controller struct {
	store   *state.Store
	sel     *selector.Selectors
	pipe    *pipeline.Pipeline
	gen     *datagen.Generator
	log     *slog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	dirty        bool
	clusterPaint bool
	heatmapPaint bool
	rebuilds     int
	lastCount    int
	unsubs       []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics records regenerations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a controller. Call Start to begin reacting.
func New(store *state.Store, sel *selector.Selectors, pipe *pipeline.Pipeline, gen *datagen.Generator, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		sel:   sel,
		pipe:  pipe,
		gen:   gen,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the store and the engine's ready signal.
func (c *Controller) Start() {
	var unsubs []func()
	mark := func(flag *bool) func(state.Change) {
		return func(state.Change) {
			c.mu.Lock()
			*flag = true
			c.mu.Unlock()
		}
	}
	for _, p := range rebuildPaths {
		unsubs = append(unsubs, c.store.Subscribe(p, mark(&c.dirty)))
	}
	unsubs = append(unsubs, c.store.Subscribe(state.PathClusterOpacity, mark(&c.clusterPaint)))
	for _, p := range heatmapPaintPaths {
		unsubs = append(unsubs, c.store.Subscribe(p, mark(&c.heatmapPaint)))
	}
	unsubs = append(unsubs, c.store.OnSettled(c.settle))
	unsubs = append(unsubs, c.pipe.Engine().OnStyleReady(func() {
		c.log.Info("style ready, rebuilding layers")
		c.Rebuild()
	}))

	c.mu.Lock()
	c.unsubs = unsubs
	c.mu.Unlock()
}

// Stop removes every subscription.
func (c *Controller) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// settle runs once per notification round.
func (c *Controller) settle() {
	c.mu.Lock()
	dirty, clusterPaint, heatmapPaint := c.dirty, c.clusterPaint, c.heatmapPaint
	c.dirty, c.clusterPaint, c.heatmapPaint = false, false, false
	c.mu.Unlock()

	if dirty {
		c.Rebuild()
		return
	}
	st := c.store.State()
	if clusterPaint {
		c.pipe.UpdateClusterOpacity(st.Cluster.Opacity)
	}
	if heatmapPaint {
		c.pipe.UpdateHeatmapProperties(st.Heatmap)
	}
}

// Rebuild runs a full layer rebuild and returns the drawn feature count.
func (c *Controller) Rebuild() int {
	n := c.pipe.RebuildForMode()
	c.mu.Lock()
	c.rebuilds++
	c.lastCount = n
	c.mu.Unlock()
	return n
}

// Rebuilds reports how many rebuilds have been requested.
func (c *Controller) Rebuilds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuilds
}

// LastCount is the feature count of the last rebuild.
func (c *Controller) LastCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCount
}

// SetMode is an explicit user mode choice. It clears the auto-switch flag
// in the same round.
func (c *Controller) SetMode(m state.Mode) bool {
	return len(c.store.SetValidatedMultiple(
		state.PathValue{Path: state.PathMode, Value: m},
		state.PathValue{Path: state.PathAutoSwitched, Value: false},
	)) == 0
}

// HandleZoom switches markers to clusters below AutoClusterZoom, and back
// at or above it when the earlier switch was automatic. It reports whether
// the mode changed.
func (c *Controller) HandleZoom(zoom float64) bool {
	mode, auto := c.store.Mode(), c.store.AutoSwitched()
	switch {
	case mode == state.ModeMarkers && zoom < AutoClusterZoom:
		c.log.Debug("zoomed out of markers, switching to clusters", "zoom", zoom)
		c.store.SetMultiple(
			state.PathValue{Path: state.PathMode, Value: state.ModeClusters},
			state.PathValue{Path: state.PathAutoSwitched, Value: true},
		)
		return true
	case mode == state.ModeClusters && auto && zoom >= AutoClusterZoom:
		c.log.Debug("zoomed back in, restoring markers", "zoom", zoom)
		c.store.SetMultiple(
			state.PathValue{Path: state.PathMode, Value: state.ModeMarkers},
			state.PathValue{Path: state.PathAutoSwitched, Value: false},
		)
		return true
	}
	return false
}

// Regenerate replaces the dataset. The rebuild follows from the rawData
// change.
func (c *Controller) Regenerate(count int, dist datagen.Distribution, region datagen.RegionID) (datagen.Result, error) {
	res, err := c.gen.Generate(count, dist, region)
	if err != nil {
		return datagen.Result{}, err
	}
	c.store.SetDataset(res.Points, res.Collection)
	c.metrics.RecordRegenerate(string(dist))
	c.log.Info("regenerated dataset", "id", res.ID, "count", count, "distribution", dist, "region", region)
	return res, nil
}

// Selectors exposes the read side for presentation code.
func (c *Controller) Selectors() *selector.Selectors { return c.sel }

// Store exposes the write side for presentation code.
func (c *Controller) Store() *state.Store { return c.store }
