package layers

import "github.com/joeblew999/plat-geoviz/internal/state"

// HeatmapRamp is the fixed density color ramp, transparent blue to red.
var HeatmapRamp = []any{"interpolate", []any{"linear"}, []any{"heatmap-density"},
	0, "rgba(33,102,172,0)",
	0.2, "rgb(103,169,207)",
	0.4, "rgb(209,229,240)",
	0.6, "rgb(253,219,199)",
	1, "rgb(178,24,43)",
}

// BuildHeatmap returns the single heatmap layer.
func BuildHeatmap(c HeatmapConfig) []Spec {
	return []Spec{{
		ID:     Heatmap,
		Type:   "heatmap",
		Source: SourceID,
		Paint: map[string]any{
			"heatmap-weight":    heatmapWeight(c.Metric),
			"heatmap-intensity": c.Intensity,
			"heatmap-radius":    c.Radius,
			"heatmap-opacity":   c.Opacity,
			"heatmap-color":     HeatmapRamp,
		},
	}}
}

func heatmapWeight(metric string) any {
	if metric == state.MetricUniform {
		return 1
	}
	return []any{"interpolate", []any{"linear"}, get("recyclingVolume"),
		1, 0.1,
		10, 1.0,
	}
}

// HeatmapPaint returns the paint updates for the slider-driven heatmap
// properties.
func HeatmapPaint(h state.HeatmapSettings) []PaintUpdate {
	return []PaintUpdate{
		{LayerID: Heatmap, Property: "heatmap-intensity", Value: h.Intensity},
		{LayerID: Heatmap, Property: "heatmap-radius", Value: h.Radius},
		{LayerID: Heatmap, Property: "heatmap-opacity", Value: h.Opacity},
	}
}
