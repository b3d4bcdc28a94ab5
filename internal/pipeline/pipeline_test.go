package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// recorder wraps the in-memory style and logs every call made through it.
type recorder struct {
	*engine.Style
	calls []string
}

func (r *recorder) AddSource(id string, src layers.SourceSpec) error {
	r.calls = append(r.calls, "addSource:"+id)
	return r.Style.AddSource(id, src)
}

func (r *recorder) RemoveSource(id string) error {
	r.calls = append(r.calls, "removeSource:"+id)
	return r.Style.RemoveSource(id)
}

func (r *recorder) AddLayer(spec layers.Spec, beforeID string) error {
	r.calls = append(r.calls, "addLayer:"+spec.ID)
	return r.Style.AddLayer(spec, beforeID)
}

func (r *recorder) RemoveLayer(id string) error {
	r.calls = append(r.calls, "removeLayer:"+id)
	return r.Style.RemoveLayer(id)
}

func (r *recorder) SetPaintProperty(layerID, prop string, value any) error {
	r.calls = append(r.calls, fmt.Sprintf("paint:%s.%s", layerID, prop))
	return r.Style.SetPaintProperty(layerID, prop, value)
}

func (r *recorder) reset() { r.calls = nil }

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func points(n int) []state.LocationPoint {
	pts := make([]state.LocationPoint, n)
	for i := range pts {
		pts[i] = state.LocationPoint{
			ID:              i + 1,
			Lng:             float64(i%90) - 45,
			Lat:             float64(i%45) - 20,
			Category:        []string{"Plastic", "Glass"}[i%2],
			RecyclingVolume: i%10 + 1,
		}
	}
	return pts
}

func setup(t *testing.T, ready bool) (*state.Store, *selector.Selectors, *recorder, *Pipeline) {
	t.Helper()
	st := state.New()
	pts := points(100)
	st.SetDataset(pts, selector.Collection(pts))
	sel := selector.New(st, nil)
	rec := &recorder{Style: engine.NewStyle()}
	if ready {
		rec.MarkReady()
	}
	return st, sel, rec, New(st, sel, rec)
}

func TestRebuildNotReadyIssuesNoCalls(t *testing.T) {
	_, _, rec, p := setup(t, false)

	assert.Equal(t, 0, p.RebuildForMode())
	assert.Empty(t, rec.calls)
}

func TestRebuildClusters(t *testing.T) {
	_, _, rec, p := setup(t, true)

	assert.Equal(t, 100, p.RebuildForMode())
	assert.Equal(t, []string{
		"addSource:locations",
		"addLayer:clusters-glow",
		"addLayer:clusters",
		"addLayer:cluster-count",
		"addLayer:unclustered-glow",
		"addLayer:unclustered-point",
	}, rec.calls)

	src, ok := rec.Source(layers.SourceID)
	require.True(t, ok)
	assert.True(t, src.Cluster)
	assert.Contains(t, src.ClusterProperties, "totalWeight")
}

func TestModeRoundTripRebuildsTwice(t *testing.T) {
	st, sel, rec, p := setup(t, true)
	p.RebuildForMode()
	rec.reset()

	require.True(t, st.SetValidated(state.PathMode, state.ModeHeatmap))
	assert.Equal(t, 100, p.RebuildForMode())
	src, _ := rec.Source(layers.SourceID)
	assert.False(t, src.Cluster)
	assert.Equal(t, []string{layers.Heatmap}, rec.LayerIDs())

	require.True(t, st.SetValidated(state.PathMode, state.ModeClusters))
	assert.Equal(t, 100, p.RebuildForMode())

	assert.Equal(t, 2, rec.count("removeSource:"))
	assert.Equal(t, 2, rec.count("addSource:"))
	// five cluster layers out, heatmap in; heatmap out, five cluster layers in
	assert.Equal(t, 6, rec.count("removeLayer:"))
	assert.Equal(t, 6, rec.count("addLayer:"))

	want := []string{"clusters-glow", "clusters", "cluster-count", "unclustered-glow", "unclustered-point"}
	assert.Equal(t, want, sel.ActiveLayerIDs())
	assert.Equal(t, want, rec.LayerIDs())
}

func TestRemovalPrecedesSourceRemoval(t *testing.T) {
	_, _, rec, p := setup(t, true)
	p.RebuildForMode()
	rec.reset()

	p.RebuildForMode()
	require.GreaterOrEqual(t, len(rec.calls), 6)
	for _, c := range rec.calls[:5] {
		assert.Contains(t, c, "removeLayer:")
	}
	assert.Equal(t, "removeSource:locations", rec.calls[5])
}

func TestRebuildWithEmptyFilterLeavesMapEmpty(t *testing.T) {
	st, _, rec, p := setup(t, true)
	p.RebuildForMode()

	require.NoError(t, st.Set(state.PathFilterCategory, "Nothing"))
	assert.Equal(t, 0, p.RebuildForMode())
	assert.Empty(t, rec.LayerIDs())
	assert.False(t, rec.HasSource(layers.SourceID))
}

func TestRebuildRespectsFilters(t *testing.T) {
	st, _, rec, p := setup(t, true)
	require.NoError(t, st.Set(state.PathFilterVolume, state.VolumeLarge))

	assert.Equal(t, 40, p.RebuildForMode())
	src, _ := rec.Source(layers.SourceID)
	assert.Len(t, src.Data.Features, 40)
}

func TestUnknownModeNeverReachesRebuild(t *testing.T) {
	st, _, rec, p := setup(t, true)
	n := p.RebuildForMode()
	before := rec.LayerIDs()

	assert.ErrorIs(t, st.Set(state.PathMode, state.Mode("globe")), state.ErrTypeMismatch)
	assert.Equal(t, n, p.RebuildForMode())
	assert.Equal(t, before, rec.LayerIDs())
}

func TestPaintOnlyUpdates(t *testing.T) {
	st, _, rec, p := setup(t, true)
	p.RebuildForMode()
	rec.reset()

	assert.Equal(t, 4, p.UpdateClusterOpacity(0.5))
	assert.Zero(t, rec.count("addLayer:"))
	assert.Zero(t, rec.count("removeLayer:"))
	assert.Equal(t, 0.5, rec.Layers()[1].Paint["circle-opacity"])

	rec.reset()
	assert.Equal(t, 0, p.UpdateHeatmapProperties(st.State().Heatmap), "heatmap layer absent")
	assert.Empty(t, rec.calls)

	require.NoError(t, st.Set(state.PathMode, state.ModeHeatmap))
	p.RebuildForMode()
	h := st.State().Heatmap
	h.Intensity = 2.5
	assert.Equal(t, 3, p.UpdateHeatmapProperties(h))
	assert.Equal(t, 2.5, rec.Layers()[0].Paint["heatmap-intensity"])
	assert.Equal(t, 0, p.UpdateClusterOpacity(0.1))
}
