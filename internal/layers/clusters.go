package layers

import "github.com/joeblew999/plat-geoviz/internal/state"

const (
	glowScale   = 1.6
	glowOpacity = 0.4
	warmColor   = "#f59e0b"
	hotColor    = "#ef4444"
	strokeColor = "#ffffff"
)

var (
	hasPointCount = []any{"has", "point_count"}
	notClustered  = []any{"!", []any{"has", "point_count"}}
)

// AvgWeightExpr is the average tonnage per clustered point. Until the
// aggregated totalWeight is populated it falls back to point_count * 5.
var AvgWeightExpr = []any{"/",
	[]any{"coalesce", get("totalWeight"), []any{"*", get("point_count"), 5}},
	get("point_count"),
}

// BuildClusters returns the five cluster layers: glow, main, count label,
// unclustered glow and unclustered point.
func BuildClusters(c ClusterConfig) []Spec {
	size := clusterSize(c.SizeMetric)
	color := clusterColor(c.ColorMetric, c.Colors)

	return []Spec{
		{
			ID:     ClustersGlow,
			Type:   "circle",
			Source: SourceID,
			Filter: hasPointCount,
			Paint: map[string]any{
				"circle-color":   color,
				"circle-radius":  []any{"*", size, glowScale},
				"circle-blur":    1,
				"circle-opacity": c.Opacity * glowOpacity,
			},
		},
		{
			ID:     Clusters,
			Type:   "circle",
			Source: SourceID,
			Filter: hasPointCount,
			Paint: map[string]any{
				"circle-color":        color,
				"circle-radius":       size,
				"circle-opacity":      c.Opacity,
				"circle-stroke-width": 2,
				"circle-stroke-color": strokeColor,
			},
		},
		{
			ID:     ClusterCount,
			Type:   "symbol",
			Source: SourceID,
			Filter: hasPointCount,
			Layout: map[string]any{
				"text-field": []any{"concat",
					[]any{"to-string", get("point_count")},
					" · ",
					[]any{"to-string", []any{"round", []any{"coalesce", get("totalWeight"), 0}}},
					"t",
				},
				"text-size":          12,
				"text-allow-overlap": true,
			},
			Paint: map[string]any{
				"text-color": strokeColor,
			},
		},
		{
			ID:     UnclusteredGlow,
			Type:   "circle",
			Source: SourceID,
			Filter: notClustered,
			Paint: map[string]any{
				"circle-color":   c.Secondary,
				"circle-radius":  12,
				"circle-blur":    1,
				"circle-opacity": c.Opacity * glowOpacity,
			},
		},
		{
			ID:     UnclusteredPoint,
			Type:   "circle",
			Source: SourceID,
			Filter: notClustered,
			Paint: map[string]any{
				"circle-color":        c.Secondary,
				"circle-radius":       6,
				"circle-opacity":      c.Opacity,
				"circle-stroke-width": 1,
				"circle-stroke-color": strokeColor,
			},
		},
	}
}

func clusterSize(metric string) []any {
	if metric == state.MetricWeight {
		return []any{"interpolate", []any{"linear"}, []any{"coalesce", get("totalWeight"), 0},
			10, 18,
			100, 28,
			500, 40,
		}
	}
	return []any{"step", get("point_count"),
		18,
		10, 24,
		50, 32,
		100, 40,
	}
}

func clusterColor(metric string, colors state.Colors) []any {
	if metric == state.MetricWeight {
		return []any{"interpolate", []any{"linear"}, AvgWeightExpr,
			1, colors.Primary,
			5, colors.Secondary,
			10, hotColor,
		}
	}
	return []any{"step", get("point_count"),
		colors.Primary,
		10, colors.Secondary,
		50, warmColor,
		100, hotColor,
	}
}

// ClusterOpacity returns the paint updates that apply opacity to the cluster
// layers without rebuilding them.
func ClusterOpacity(opacity float64) []PaintUpdate {
	return []PaintUpdate{
		{LayerID: ClustersGlow, Property: "circle-opacity", Value: opacity * glowOpacity},
		{LayerID: Clusters, Property: "circle-opacity", Value: opacity},
		{LayerID: UnclusteredGlow, Property: "circle-opacity", Value: opacity * glowOpacity},
		{LayerID: UnclusteredPoint, Property: "circle-opacity", Value: opacity},
	}
}
