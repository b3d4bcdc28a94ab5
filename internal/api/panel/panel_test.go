package panel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/engine"
	"github.com/joeblew999/plat-geoviz/internal/humastar"
	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/pipeline"
	"github.com/joeblew999/plat-geoviz/internal/selector"
	"github.com/joeblew999/plat-geoviz/internal/state"
	"github.com/joeblew999/plat-geoviz/internal/templates"
	"github.com/joeblew999/plat-geoviz/internal/viewer"
)

type harness struct {
	mux   *http.ServeMux
	api   humatest.TestAPI
	store *state.Store
	style *engine.Style
}

// newHarness serves the panel through humago, which the SSE bridge unwraps.
func newHarness(t *testing.T) *harness {
	t.Helper()
	st := state.New()
	sel := selector.New(st, nil)
	style := engine.NewStyle()
	ctl := viewer.New(st, sel, pipeline.New(st, sel, style), datagen.New(3))
	ctl.Start()
	t.Cleanup(ctl.Stop)
	_, err := ctl.Regenerate(120, datagen.Clustered, datagen.RegionUS)
	require.NoError(t, err)

	h := New(ctl, style, templates.NewEmbedded(), nil)
	t.Cleanup(h.Close)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("panel test", "1.0.0"))
	h.RegisterRoutes(api)
	return &harness{mux: mux, api: humatest.Wrap(t, api), store: st, style: style}
}

func TestStateSignalsCoverPersistedLeaves(t *testing.T) {
	st := state.New()
	sig := StateSignals(st)
	for _, p := range state.PersistedLeaves {
		name, ok := SignalName(p)
		require.True(t, ok, p)
		v, _ := st.Get(p)
		assert.Equal(t, v, sig[name], p)
	}
	assert.Equal(t, false, sig["autoSwitched"])
}

func TestWritesOnlyPresentSignals(t *testing.T) {
	st := state.New()
	pvs := writes(humastar.Signals{"clusterOpacity": 0.3, "error": ""}, st)
	assert.Equal(t, []state.PathValue{{Path: state.PathClusterOpacity, Value: 0.3}}, pvs)

	pvs = writes(humastar.Signals{"mode": "heatmap"}, st)
	assert.Contains(t, pvs, state.PathValue{Path: state.PathAutoSwitched, Value: false})

	pvs = writes(humastar.Signals{"mode": "clusters"}, st)
	assert.Len(t, pvs, 1, "unchanged mode keeps the auto-switch flag")
}

func TestSettingsAppliesBatch(t *testing.T) {
	h := newHarness(t)
	h.style.MarkReady()

	resp := h.api.Post("/api/v1/panel/settings", map[string]any{
		"mode":          "heatmap",
		"heatmapRadius": 60,
		"colorPrimary":  "#123456",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "datastar-patch-signals")

	s := h.store.State()
	assert.Equal(t, state.ModeHeatmap, s.Mode)
	assert.Equal(t, 60, s.Heatmap.Radius)
	assert.Equal(t, "#123456", s.Colors.Primary)
	assert.Equal(t, []string{layers.Heatmap}, h.style.LayerIDs())
}

func TestSettingsRejectsWholeBatch(t *testing.T) {
	h := newHarness(t)
	resp := h.api.Post("/api/v1/panel/settings", map[string]any{
		"mode":           "heatmap",
		"clusterOpacity": 3,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "clusterOpacity")
	assert.Equal(t, state.ModeClusters, h.store.Mode(), "nothing written")
}

func TestSettingsBadBody(t *testing.T) {
	h := newHarness(t)
	resp := h.api.Post("/api/v1/panel/settings", strings.NewReader("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReadyRebuildsFromScratch(t *testing.T) {
	h := newHarness(t)
	h.style.MarkReady()
	require.NotEmpty(t, h.style.LayerIDs())

	resp := h.api.Post("/api/v1/panel/ready")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, h.style.IsStyleReady())
	assert.Equal(t, layers.IDsFor(state.ModeClusters), h.style.LayerIDs())
}

func TestZoomSwitchesMarkers(t *testing.T) {
	h := newHarness(t)
	_ = h.store.Set(state.PathMode, state.ModeMarkers)

	resp := h.api.Post("/api/v1/panel/zoom", map[string]any{"zoom": 5.5})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, state.ModeClusters, h.store.Mode())
	assert.True(t, h.store.AutoSwitched())
	assert.Contains(t, resp.Body.String(), "autoSwitched")

	h.api.Post("/api/v1/panel/zoom", map[string]any{"zoom": 9})
	assert.Equal(t, state.ModeMarkers, h.store.Mode())

	assert.Equal(t, http.StatusBadRequest, h.api.Post("/api/v1/panel/zoom", map[string]any{}).Code)
}

func TestRegenerateFitsBounds(t *testing.T) {
	h := newHarness(t)
	resp := h.api.Post("/api/v1/panel/regenerate", map[string]any{
		"count": 40, "distribution": "uniform", "region": "eu",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, h.store.Points(), 40)
	assert.Contains(t, resp.Body.String(), "Generated 40 points")
	assert.Contains(t, resp.Body.String(), EventFitBounds)

	resp = h.api.Post("/api/v1/panel/regenerate", map[string]any{"count": 0})
	assert.Contains(t, resp.Body.String(), "invalid point count")
	assert.Len(t, h.store.Points(), 40)
}

func TestResetRoute(t *testing.T) {
	h := newHarness(t)
	_ = h.store.Set(state.PathHeatmapRadius, 90)
	resp := h.api.Post("/api/v1/panel/reset")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 30, h.store.State().Heatmap.Radius)
}

func TestEventsReplaysStyleAndStats(t *testing.T) {
	h := newHarness(t)
	h.style.MarkReady()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/panel/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, EventMapOp)
	assert.Contains(t, body, layers.SourceID)
	assert.Contains(t, body, `stat-total`)
}
