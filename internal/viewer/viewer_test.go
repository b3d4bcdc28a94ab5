package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/pipeline"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

type fixture struct {
	store *state.Store
	style *engine.Style
	ctl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.New()
	sel := selector.New(st, nil)
	style := engine.NewStyle()
	pipe := pipeline.New(st, sel, style)
	ctl := New(st, sel, pipe, datagen.New(1))
	ctl.Start()
	t.Cleanup(ctl.Stop)

	_, err := ctl.Regenerate(300, datagen.Uniform, datagen.RegionUS)
	require.NoError(t, err)
	return &fixture{store: st, style: style, ctl: ctl}
}

func TestStyleReadyTriggersRebuild(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.style.LayerIDs(), "nothing drawn before the style is ready")

	f.style.MarkReady()
	assert.Equal(t, layers.IDsFor(state.ModeClusters), f.style.LayerIDs())
	assert.Equal(t, 300, f.ctl.LastCount())
}

func TestBatchCausesOneRebuild(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	before := f.ctl.Rebuilds()

	f.store.SetMultiple(
		state.PathValue{Path: state.PathMode, Value: state.ModeHeatmap},
		state.PathValue{Path: state.PathFilterVolume, Value: state.VolumeSmall},
		state.PathValue{Path: state.PathColorsPrimary, Value: "#000000"},
	)
	assert.Equal(t, before+1, f.ctl.Rebuilds())
	assert.Equal(t, []string{layers.Heatmap}, f.style.LayerIDs())
}

func TestOpacityIsPaintOnly(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	before := f.ctl.Rebuilds()

	require.True(t, f.store.SetValidated(state.PathClusterOpacity, 0.3))
	assert.Equal(t, before, f.ctl.Rebuilds())
	assert.Equal(t, 0.3, f.style.Layers()[1].Paint["circle-opacity"])

	require.True(t, f.store.SetValidated(state.PathHeatmapIntensity, 3.0))
	assert.Equal(t, before, f.ctl.Rebuilds(), "heatmap absent, nothing to do")
}

func TestHeatmapSlidersArePaintOnly(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	require.True(t, f.ctl.SetMode(state.ModeHeatmap))
	before := f.ctl.Rebuilds()

	require.True(t, f.store.SetValidated(state.PathHeatmapRadius, 60))
	assert.Equal(t, before, f.ctl.Rebuilds())
	assert.Equal(t, 60, f.style.Layers()[0].Paint["heatmap-radius"])

	require.True(t, f.store.SetValidated(state.PathHeatmapMetric, state.MetricUniform))
	assert.Equal(t, before+1, f.ctl.Rebuilds())
}

func TestZoomAutoSwitch(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	require.True(t, f.ctl.SetMode(state.ModeMarkers))

	assert.False(t, f.ctl.HandleZoom(10))
	assert.True(t, f.ctl.HandleZoom(5))
	assert.Equal(t, state.ModeClusters, f.store.Mode())
	assert.True(t, f.store.AutoSwitched())

	assert.False(t, f.ctl.HandleZoom(6))
	assert.True(t, f.ctl.HandleZoom(AutoClusterZoom))
	assert.Equal(t, state.ModeMarkers, f.store.Mode())
	assert.False(t, f.store.AutoSwitched())
	assert.Equal(t, layers.IDsFor(state.ModeMarkers), f.style.LayerIDs())
}

func TestExplicitModeClearsAutoSwitch(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctl.SetMode(state.ModeMarkers))
	f.ctl.HandleZoom(3)
	require.True(t, f.store.AutoSwitched())

	require.True(t, f.ctl.SetMode(state.ModeClusters))
	assert.False(t, f.store.AutoSwitched())
	assert.False(t, f.ctl.HandleZoom(12), "user chose clusters, stay there")

	assert.False(t, f.ctl.SetMode("globe"))
}

func TestRegenerateRebuilds(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	before := f.ctl.Rebuilds()

	res, err := f.ctl.Regenerate(50, datagen.Hotspot, datagen.RegionEU)
	require.NoError(t, err)
	assert.Len(t, res.Points, 50)
	assert.Equal(t, before+1, f.ctl.Rebuilds())
	assert.Equal(t, 50, f.ctl.LastCount())

	_, err = f.ctl.Regenerate(0, datagen.Hotspot, datagen.RegionEU)
	assert.Error(t, err)
	assert.Equal(t, before+1, f.ctl.Rebuilds())
}

func TestStopUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.style.MarkReady()
	f.ctl.Stop()
	before := f.ctl.Rebuilds()

	require.True(t, f.ctl.SetMode(state.ModeHeatmap))
	assert.Equal(t, before, f.ctl.Rebuilds())
}
