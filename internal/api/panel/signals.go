// Package panel contains the Datastar SSE handlers behind the settings panel.
// The panel posts its signals; responses patch signals and fragments back,
// and the event stream carries engine ops for the browser map to replay.
package panel

import (
	"github.com/joeblew999/plat-geoviz/internal/humastar"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// binding ties a flat signal name to a state path.
type binding struct {
	signal string
	path   state.Path
}

// bindings covers every persisted leaf.
var bindings = []binding{
	{"mode", state.PathMode},
	{"volume", state.PathFilterVolume},
	{"category", state.PathFilterCategory},
	{"clusterSizeMetric", state.PathClusterSizeMetric},
	{"clusterColorMetric", state.PathClusterColorMetric},
	{"clusterRadius", state.PathClusterRadius},
	{"clusterMaxZoom", state.PathClusterMaxZoom},
	{"clusterOpacity", state.PathClusterOpacity},
	{"heatmapMetric", state.PathHeatmapMetric},
	{"heatmapIntensity", state.PathHeatmapIntensity},
	{"heatmapRadius", state.PathHeatmapRadius},
	{"heatmapOpacity", state.PathHeatmapOpacity},
	{"markerIcon", state.PathMarkersIcon},
	{"markerBaseSize", state.PathMarkersBaseSize},
	{"markerScaleByVolume", state.PathMarkersScaleByVolume},
	{"colorPrimary", state.PathColorsPrimary},
	{"colorSecondary", state.PathColorsSecondary},
}

// SignalName returns the signal bound to p.
func SignalName(p state.Path) (string, bool) {
	for _, b := range bindings {
		if b.path == p {
			return b.signal, true
		}
	}
	return "", false
}

// StateSignals flattens the store's persisted state into panel signals.
func StateSignals(st *state.Store) map[string]any {
	out := make(map[string]any, len(bindings)+1)
	for _, b := range bindings {
		v, _ := st.Get(b.path)
		out[b.signal] = v
	}
	out["autoSwitched"] = st.AutoSwitched()
	return out
}

// writes turns the posted signals into store writes. Only bound signals
// present in the post are written. A mode change from the panel is a user
// choice and clears the auto-switch flag.
func writes(sig humastar.Signals, st *state.Store) []state.PathValue {
	var pvs []state.PathValue
	for _, b := range bindings {
		v, ok := sig[b.signal]
		if !ok {
			continue
		}
		pvs = append(pvs, state.PathValue{Path: b.path, Value: v})
		if b.path == state.PathMode {
			if m, _ := v.(string); state.Mode(m) != st.Mode() {
				pvs = append(pvs, state.PathValue{Path: state.PathAutoSwitched, Value: false})
			}
		}
	}
	return pvs
}
