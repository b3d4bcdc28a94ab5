package layers

// BuildMarkers returns the icon layer and its label layer. Labels only show
// from LabelMinZoom.
func BuildMarkers(c MarkerConfig) []Spec {
	var size any = c.BaseSize
	if c.ScaleByVolume {
		size = []any{"interpolate", []any{"linear"}, get("recyclingVolume"),
			1, 0.7 * c.BaseSize,
			5, 1.0 * c.BaseSize,
			10, 1.4 * c.BaseSize,
		}
	}

	return []Spec{
		{
			ID:     Markers,
			Type:   "symbol",
			Source: SourceID,
			Layout: map[string]any{
				"icon-image":         c.Icon,
				"icon-size":          size,
				"icon-allow-overlap": true,
			},
			Paint: map[string]any{
				"icon-color": c.Primary,
			},
		},
		{
			ID:      MarkerLabels,
			Type:    "symbol",
			Source:  SourceID,
			MinZoom: LabelMinZoom,
			Layout: map[string]any{
				"text-field":  []any{"concat", get("metro"), " · ", []any{"to-string", get("recyclingVolume")}, "t"},
				"text-size":   11,
				"text-offset": []any{0, 1.6},
				"text-anchor": "top",
			},
			Paint: map[string]any{
				"text-color":      c.Secondary,
				"text-halo-color": strokeColor,
				"text-halo-width": 1,
			},
		},
	}
}
