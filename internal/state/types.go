// Package state holds the application state tree and the store that mediates
// every read and write to it.
package state

import "github.com/paulmach/orb/geojson"

// Mode selects the active visualization encoding.
type Mode string

const (
	ModeClusters Mode = "clusters"
	ModeHeatmap  Mode = "heatmap"
	ModeMarkers  Mode = "markers"
)

// Modes lists every known mode in display order.
var Modes = []Mode{ModeClusters, ModeHeatmap, ModeMarkers}

// Known reports whether m is a registered mode.
func (m Mode) Known() bool {
	for _, k := range Modes {
		if k == m {
			return true
		}
	}
	return false
}

// VolumeFilter buckets points by recycling volume.
type VolumeFilter string

const (
	VolumeAll    VolumeFilter = "all"
	VolumeSmall  VolumeFilter = "small"
	VolumeMedium VolumeFilter = "medium"
	VolumeLarge  VolumeFilter = "large"
)

// Range returns the inclusive volume range of the bucket.
// ok is false for VolumeAll and unknown buckets, meaning unrestricted.
func (v VolumeFilter) Range() (lo, hi int, ok bool) {
	switch v {
	case VolumeSmall:
		return 1, 3, true
	case VolumeMedium:
		return 4, 6, true
	case VolumeLarge:
		return 7, 10, true
	}
	return 0, 0, false
}

// CategoryAll disables category filtering.
const CategoryAll = "all"

// Metric names shared by the cluster and heatmap settings.
const (
	MetricCount   = "count"
	MetricWeight  = "weight"
	MetricUniform = "uniform"
	MetricVolume  = "volume"
)

// LocationPoint is one generated recycling site.
type LocationPoint struct {
	ID              int     `json:"id" doc:"Unique point identifier"`
	Lng             float64 `json:"lng" doc:"Longitude" minimum:"-180" maximum:"180"`
	Lat             float64 `json:"lat" doc:"Latitude" minimum:"-90" maximum:"90"`
	Category        string  `json:"category" doc:"Material category" example:"Plastic"`
	Metro           string  `json:"metro" doc:"Nearest metro area" example:"Berlin"`
	RecyclingVolume int     `json:"recyclingVolume" minimum:"1" maximum:"10" doc:"Tons recycled"`
}

// Filters narrows the dataset shown on the map.
type Filters struct {
	Volume   VolumeFilter `json:"volume" yaml:"volume" enum:"all,small,medium,large" default:"all" doc:"Volume bucket"`
	Category string       `json:"category" yaml:"category" default:"all" doc:"Category name or all"`
}

// ClusterSettings configures the clustered encoding.
type ClusterSettings struct {
	SizeMetric  string  `json:"sizeMetric" yaml:"sizeMetric" enum:"count,weight" default:"count" doc:"Circle size driver"`
	ColorMetric string  `json:"colorMetric" yaml:"colorMetric" enum:"count,weight" default:"count" doc:"Circle color driver"`
	Radius      int     `json:"radius" yaml:"radius" minimum:"10" maximum:"200" default:"50" doc:"Cluster radius (px)"`
	MaxZoom     int     `json:"maxZoom" yaml:"maxZoom" minimum:"0" maximum:"22" default:"14" doc:"Max zoom to cluster points on"`
	Opacity     float64 `json:"opacity" yaml:"opacity" minimum:"0" maximum:"1" default:"0.8" doc:"Circle opacity (0-1)"`
}

// HeatmapSettings configures the density heatmap.
type HeatmapSettings struct {
	Metric    string  `json:"metric" yaml:"metric" enum:"uniform,volume" default:"volume" doc:"Per-point weight"`
	Intensity float64 `json:"intensity" yaml:"intensity" minimum:"0.1" maximum:"5" default:"1" doc:"Heatmap intensity"`
	Radius    int     `json:"radius" yaml:"radius" minimum:"5" maximum:"100" default:"30" doc:"Heatmap radius (px)"`
	Opacity   float64 `json:"opacity" yaml:"opacity" minimum:"0" maximum:"1" default:"0.8" doc:"Heatmap opacity (0-1)"`
}

// MarkerSettings configures the icon markers.
type MarkerSettings struct {
	Icon          string  `json:"icon" yaml:"icon" default:"recycle" doc:"Icon image id"`
	BaseSize      float64 `json:"baseSize" yaml:"baseSize" minimum:"0.1" maximum:"3" default:"1" doc:"Icon base scale"`
	ScaleByVolume bool    `json:"scaleByVolume" yaml:"scaleByVolume" default:"true" doc:"Scale icons by recycling volume"`
}

// Colors is the primary/secondary color pair used by every encoding.
type Colors struct {
	Primary   string `json:"primary" yaml:"primary" pattern:"^#[0-9a-fA-F]{6}$" default:"#22c55e" doc:"Primary color"`
	Secondary string `json:"secondary" yaml:"secondary" pattern:"^#[0-9a-fA-F]{6}$" default:"#3b82f6" doc:"Secondary color"`
}

// State is the whole application state tree.
type State struct {
	Mode              Mode
	RawData           []LocationPoint
	DerivedCollection *geojson.FeatureCollection
	Filters           Filters
	Cluster           ClusterSettings
	Heatmap           HeatmapSettings
	Markers           MarkerSettings
	Colors            Colors

	// AutoSwitched records that the current mode came from a zoom-triggered
	// switch rather than a user choice. Not persisted.
	AutoSwitched bool
}

// Defaults returns the state every store starts from.
func Defaults() State {
	return State{
		Mode:    ModeClusters,
		Filters: Filters{Volume: VolumeAll, Category: CategoryAll},
		Cluster: ClusterSettings{
			SizeMetric:  MetricCount,
			ColorMetric: MetricCount,
			Radius:      50,
			MaxZoom:     14,
			Opacity:     0.8,
		},
		Heatmap: HeatmapSettings{
			Metric:    MetricVolume,
			Intensity: 1,
			Radius:    30,
			Opacity:   0.8,
		},
		Markers: MarkerSettings{
			Icon:          "recycle",
			BaseSize:      1,
			ScaleByVolume: true,
		},
		Colors: Colors{Primary: "#22c55e", Secondary: "#3b82f6"},
	}
}

// Snapshot is the persisted subset of State.
type Snapshot struct {
	Mode    Mode            `json:"mode" yaml:"mode" enum:"clusters,heatmap,markers" doc:"Visualization mode"`
	Filters Filters         `json:"filters" yaml:"filters"`
	Cluster ClusterSettings `json:"cluster" yaml:"cluster"`
	Heatmap HeatmapSettings `json:"heatmap" yaml:"heatmap"`
	Markers MarkerSettings  `json:"markers" yaml:"markers"`
	Colors  Colors          `json:"colors" yaml:"colors"`
}

// DefaultSnapshot is the snapshot of Defaults.
func DefaultSnapshot() Snapshot {
	return snapshotOf(Defaults())
}

func snapshotOf(s State) Snapshot {
	return Snapshot{
		Mode:    s.Mode,
		Filters: s.Filters,
		Cluster: s.Cluster,
		Heatmap: s.Heatmap,
		Markers: s.Markers,
		Colors:  s.Colors,
	}
}

// Change is delivered to subscribers.
type Change struct {
	Path  Path
	Value any
}

// PathValue pairs a path with a value for multi-path writes.
type PathValue struct {
	Path  Path
	Value any
}
