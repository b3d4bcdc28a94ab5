// Package layers turns visualization settings into ordered MapLibre layer
// specifications. Every function here is pure.
package layers

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

// SourceID is the single GeoJSON source every layer draws from.
const SourceID = "locations"

// Layer ids, grouped by mode in draw order.
const (
	ClustersGlow     = "clusters-glow"
	Clusters         = "clusters"
	ClusterCount     = "cluster-count"
	UnclusteredGlow  = "unclustered-glow"
	UnclusteredPoint = "unclustered-point"

	Heatmap = "heatmap"

	Markers      = "markers"
	MarkerLabels = "marker-labels"
)

// LabelMinZoom is the zoom at which marker labels appear.
const LabelMinZoom = 12

var idsByMode = map[state.Mode][]string{
	state.ModeClusters: {ClustersGlow, Clusters, ClusterCount, UnclusteredGlow, UnclusteredPoint},
	state.ModeHeatmap:  {Heatmap},
	state.ModeMarkers:  {Markers, MarkerLabels},
}

// AllIDs is the superset of layer ids across every mode. A rebuild removes
// all of them before adding the new mode's layers.
var AllIDs = func() []string {
	var ids []string
	for _, m := range state.Modes {
		ids = append(ids, idsByMode[m]...)
	}
	return ids
}()

// IDsFor returns the layer ids drawn by mode, in draw order, or nil for an
// unknown mode.
func IDsFor(m state.Mode) []string {
	ids, ok := idsByMode[m]
	if !ok {
		return nil
	}
	return append([]string(nil), ids...)
}

// ErrUnknownMode is returned by Build for a config it has no factory for.
var ErrUnknownMode = errors.New("unknown mode")

// Spec is one MapLibre style layer.
type Spec struct {
	ID      string         `json:"id" doc:"Layer id"`
	Type    string         `json:"type" enum:"circle,symbol,heatmap" doc:"MapLibre layer type"`
	Source  string         `json:"source" doc:"Source id"`
	Filter  []any          `json:"filter,omitempty" doc:"MapLibre filter expression"`
	Layout  map[string]any `json:"layout,omitempty" doc:"Layout properties"`
	Paint   map[string]any `json:"paint,omitempty" doc:"Paint properties"`
	MinZoom float64        `json:"minzoom,omitempty" doc:"Minimum zoom"`
}

// SourceSpec is a MapLibre GeoJSON source.
type SourceSpec struct {
	Type              string                     `json:"type"`
	Data              *geojson.FeatureCollection `json:"data"`
	Cluster           bool                       `json:"cluster,omitempty"`
	ClusterRadius     int                        `json:"clusterRadius,omitempty"`
	ClusterMaxZoom    int                        `json:"clusterMaxZoom,omitempty"`
	ClusterProperties map[string]any             `json:"clusterProperties,omitempty"`
}

// NewSource builds the shared source for fc. Clustering, with totalWeight
// summed from recyclingVolume, is enabled only in clusters mode.
func NewSource(m state.Mode, fc *geojson.FeatureCollection, cs state.ClusterSettings) SourceSpec {
	src := SourceSpec{Type: "geojson", Data: fc}
	if m == state.ModeClusters {
		src.Cluster = true
		src.ClusterRadius = cs.Radius
		src.ClusterMaxZoom = cs.MaxZoom
		src.ClusterProperties = map[string]any{
			"totalWeight": []any{"+", []any{"get", "recyclingVolume"}},
		}
	}
	return src
}

// Config is the flattened per-mode input of a factory.
type Config interface {
	ConfigMode() state.Mode
}

// ClusterConfig merges the cluster settings with the color pair.
type ClusterConfig struct {
	Mode state.Mode `json:"mode"`
	state.ClusterSettings
	state.Colors
}

func (c ClusterConfig) ConfigMode() state.Mode { return c.Mode }

// HeatmapConfig merges the heatmap settings with the color pair.
type HeatmapConfig struct {
	Mode state.Mode `json:"mode"`
	state.HeatmapSettings
	state.Colors
}

func (c HeatmapConfig) ConfigMode() state.Mode { return c.Mode }

// MarkerConfig merges the marker settings with the color pair.
type MarkerConfig struct {
	Mode state.Mode `json:"mode"`
	state.MarkerSettings
	state.Colors
}

func (c MarkerConfig) ConfigMode() state.Mode { return c.Mode }

// ConfigFor flattens the settings of mode m from st. It returns nil for an
// unknown mode.
func ConfigFor(m state.Mode, st state.State) Config {
	switch m {
	case state.ModeClusters:
		return ClusterConfig{Mode: m, ClusterSettings: st.Cluster, Colors: st.Colors}
	case state.ModeHeatmap:
		return HeatmapConfig{Mode: m, HeatmapSettings: st.Heatmap, Colors: st.Colors}
	case state.ModeMarkers:
		return MarkerConfig{Mode: m, MarkerSettings: st.Markers, Colors: st.Colors}
	}
	return nil
}

// Build dispatches cfg to its factory.
func Build(cfg Config) ([]Spec, error) {
	switch c := cfg.(type) {
	case ClusterConfig:
		return BuildClusters(c), nil
	case HeatmapConfig:
		return BuildHeatmap(c), nil
	case MarkerConfig:
		return BuildMarkers(c), nil
	case nil:
		return nil, fmt.Errorf("%w: no config", ErrUnknownMode)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.ConfigMode())
}

// PaintUpdate is one paint property change on an existing layer.
type PaintUpdate struct {
	LayerID  string `json:"layerId"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

func get(prop string) []any { return []any{"get", prop} }
