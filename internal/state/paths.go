package state

import (
	"math"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Path addresses one node of the state tree.
type Path string

// Wildcard subscribes to every change.
const Wildcard Path = "*"

const (
	PathMode              Path = "mode"
	PathRawData           Path = "rawData"
	PathDerivedCollection Path = "derivedCollection"
	PathAutoSwitched      Path = "autoSwitchedToCluster"

	PathFilters        Path = "filters"
	PathFilterVolume   Path = "filters.volume"
	PathFilterCategory Path = "filters.category"

	PathCluster            Path = "cluster"
	PathClusterSizeMetric  Path = "cluster.sizeMetric"
	PathClusterColorMetric Path = "cluster.colorMetric"
	PathClusterRadius      Path = "cluster.radius"
	PathClusterMaxZoom     Path = "cluster.maxZoom"
	PathClusterOpacity     Path = "cluster.opacity"

	PathHeatmap          Path = "heatmap"
	PathHeatmapMetric    Path = "heatmap.metric"
	PathHeatmapIntensity Path = "heatmap.intensity"
	PathHeatmapRadius    Path = "heatmap.radius"
	PathHeatmapOpacity   Path = "heatmap.opacity"

	PathMarkers              Path = "markers"
	PathMarkersIcon          Path = "markers.icon"
	PathMarkersBaseSize      Path = "markers.baseSize"
	PathMarkersScaleByVolume Path = "markers.scaleByVolume"

	PathColors          Path = "colors"
	PathColorsPrimary   Path = "colors.primary"
	PathColorsSecondary Path = "colors.secondary"
)

// PersistedLeaves lists every leaf path of the snapshot layout, in the order
// a restore applies them.
var PersistedLeaves = []Path{
	PathMode,
	PathFilterVolume, PathFilterCategory,
	PathClusterSizeMetric, PathClusterColorMetric, PathClusterRadius, PathClusterMaxZoom, PathClusterOpacity,
	PathHeatmapMetric, PathHeatmapIntensity, PathHeatmapRadius, PathHeatmapOpacity,
	PathMarkersIcon, PathMarkersBaseSize, PathMarkersScaleByVolume,
	PathColorsPrimary, PathColorsSecondary,
}

// Parent returns the enclosing path, or "" for top-level paths.
func (p Path) Parent() Path {
	i := strings.LastIndexByte(string(p), '.')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Segments splits the path on dots.
func (p Path) Segments() []string {
	return strings.Split(string(p), ".")
}

// Known reports whether p addresses a node of the tree.
func (p Path) Known() bool {
	_, ok := accessors[p]
	return ok
}

// Persisted reports whether p is part of the snapshot.
func (p Path) Persisted() bool {
	switch p {
	case PathRawData, PathDerivedCollection, PathAutoSwitched, Wildcard, "":
		return false
	}
	return p.Known()
}

// Children returns the direct child paths of a compound path.
func (p Path) Children() []Path {
	return children[p]
}

// ParsePath resolves a dotted string into a known path.
func ParsePath(s string) (Path, bool) {
	p := Path(s)
	return p, p.Known()
}

// accessor reads and writes one node of State. set reports false when the
// value cannot be converted to the node's type, or for mode, is not a known
// mode.
type accessor struct {
	get func(*State) any
	set func(*State, any) bool
}

var accessors = map[Path]accessor{
	PathMode: {
		get: func(s *State) any { return s.Mode },
		set: func(s *State, v any) bool {
			m, ok := toString(v)
			if !ok || !Mode(m).Known() {
				return false
			}
			s.Mode = Mode(m)
			return true
		},
	},
	PathRawData: {
		get: func(s *State) any { return s.RawData },
		set: func(s *State, v any) bool {
			pts, ok := v.([]LocationPoint)
			if ok || v == nil {
				s.RawData = pts
				return true
			}
			return false
		},
	},
	PathDerivedCollection: {
		get: func(s *State) any { return s.DerivedCollection },
		set: func(s *State, v any) bool {
			fc, ok := v.(*geojson.FeatureCollection)
			if ok || v == nil {
				s.DerivedCollection = fc
				return true
			}
			return false
		},
	},
	PathAutoSwitched: boolField(func(s *State) *bool { return &s.AutoSwitched }),

	PathFilters: {
		get: func(s *State) any { return s.Filters },
		set: func(s *State, v any) bool {
			f, ok := v.(Filters)
			if ok {
				s.Filters = f
			}
			return ok
		},
	},
	PathFilterVolume: {
		get: func(s *State) any { return s.Filters.Volume },
		set: func(s *State, v any) bool {
			str, ok := toString(v)
			if ok {
				s.Filters.Volume = VolumeFilter(str)
			}
			return ok
		},
	},
	PathFilterCategory: stringField(func(s *State) *string { return &s.Filters.Category }),

	PathCluster: {
		get: func(s *State) any { return s.Cluster },
		set: func(s *State, v any) bool {
			c, ok := v.(ClusterSettings)
			if ok {
				s.Cluster = c
			}
			return ok
		},
	},
	PathClusterSizeMetric:  stringField(func(s *State) *string { return &s.Cluster.SizeMetric }),
	PathClusterColorMetric: stringField(func(s *State) *string { return &s.Cluster.ColorMetric }),
	PathClusterRadius:      intField(func(s *State) *int { return &s.Cluster.Radius }),
	PathClusterMaxZoom:     intField(func(s *State) *int { return &s.Cluster.MaxZoom }),
	PathClusterOpacity:     floatField(func(s *State) *float64 { return &s.Cluster.Opacity }),

	PathHeatmap: {
		get: func(s *State) any { return s.Heatmap },
		set: func(s *State, v any) bool {
			h, ok := v.(HeatmapSettings)
			if ok {
				s.Heatmap = h
			}
			return ok
		},
	},
	PathHeatmapMetric:    stringField(func(s *State) *string { return &s.Heatmap.Metric }),
	PathHeatmapIntensity: floatField(func(s *State) *float64 { return &s.Heatmap.Intensity }),
	PathHeatmapRadius:    intField(func(s *State) *int { return &s.Heatmap.Radius }),
	PathHeatmapOpacity:   floatField(func(s *State) *float64 { return &s.Heatmap.Opacity }),

	PathMarkers: {
		get: func(s *State) any { return s.Markers },
		set: func(s *State, v any) bool {
			m, ok := v.(MarkerSettings)
			if ok {
				s.Markers = m
			}
			return ok
		},
	},
	PathMarkersIcon:          stringField(func(s *State) *string { return &s.Markers.Icon }),
	PathMarkersBaseSize:      floatField(func(s *State) *float64 { return &s.Markers.BaseSize }),
	PathMarkersScaleByVolume: boolField(func(s *State) *bool { return &s.Markers.ScaleByVolume }),

	PathColors: {
		get: func(s *State) any { return s.Colors },
		set: func(s *State, v any) bool {
			c, ok := v.(Colors)
			if ok {
				s.Colors = c
			}
			return ok
		},
	},
	PathColorsPrimary:   stringField(func(s *State) *string { return &s.Colors.Primary }),
	PathColorsSecondary: stringField(func(s *State) *string { return &s.Colors.Secondary }),
}

var children = func() map[Path][]Path {
	m := map[Path][]Path{}
	// Walk PersistedLeaves so children come out in snapshot order.
	for _, p := range PersistedLeaves {
		if parent := p.Parent(); parent != "" {
			m[parent] = append(m[parent], p)
		}
	}
	return m
}()

func stringField(field func(*State) *string) accessor {
	return accessor{
		get: func(s *State) any { return *field(s) },
		set: func(s *State, v any) bool {
			str, ok := toString(v)
			if ok {
				*field(s) = str
			}
			return ok
		},
	}
}

func intField(field func(*State) *int) accessor {
	return accessor{
		get: func(s *State) any { return *field(s) },
		set: func(s *State, v any) bool {
			n, ok := toInt(v)
			if ok {
				*field(s) = n
			}
			return ok
		},
	}
}

func floatField(field func(*State) *float64) accessor {
	return accessor{
		get: func(s *State) any { return *field(s) },
		set: func(s *State, v any) bool {
			f, ok := toFloat(v)
			if ok {
				*field(s) = f
			}
			return ok
		},
	}
}

func boolField(field func(*State) *bool) accessor {
	return accessor{
		get: func(s *State) any { return *field(s) },
		set: func(s *State, v any) bool {
			b, ok := v.(bool)
			if ok {
				*field(s) = b
			}
			return ok
		},
	}
}

// toString accepts strings and the string-backed enum types.
func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case Mode:
		return string(s), true
	case VolumeFilter:
		return string(s), true
	}
	return "", false
}

// toInt accepts Go integers and integral float64 values (JSON numbers).
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
