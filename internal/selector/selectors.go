// Package selector derives read-only views of the store state. Each selector
// is memoized on an explicit dependency list.
package selector

import (
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/state"
)

// VolumeDistribution counts filtered points per volume bucket.
type VolumeDistribution struct {
	Small  int `json:"small" doc:"Points with 1-3 tons"`
	Medium int `json:"medium" doc:"Points with 4-6 tons"`
	Large  int `json:"large" doc:"Points with 7-10 tons"`
}

// Stats summarizes the filtered dataset.
type Stats struct {
	Total              int                `json:"total" doc:"Points in the dataset"`
	Filtered           int                `json:"filtered" doc:"Points passing the filters"`
	FilterPercentage   int                `json:"filterPercentage" minimum:"0" maximum:"100" doc:"Filtered share, rounded percent"`
	Categories         map[string]int     `json:"categories" doc:"Filtered points per category"`
	VolumeDistribution VolumeDistribution `json:"volumeDistribution"`
	AvgVolume          float64            `json:"avgVolume" doc:"Mean filtered volume, one decimal"`
}

// Selectors holds every memoized selector over one store.
type Selectors struct {
	store *state.Store
	log   *slog.Logger

	filtered   *Memo[[]state.LocationPoint]
	collection *Memo[*geojson.FeatureCollection]
	layerIDs   *Memo[[]string]
	config     *Memo[layers.Config]
	stats      *Memo[Stats]
	bounds     *Memo[boundResult]
	categories *Memo[[]string]
}

type boundResult struct {
	bound orb.Bound
	ok    bool
}

// New builds the selectors for store. A nil logger uses slog.Default.
func New(store *state.Store, log *slog.Logger) *Selectors {
	if log == nil {
		log = slog.Default()
	}
	s := &Selectors{store: store, log: log}

	s.filtered = NewMemo(s.computeFiltered, func() []any {
		st := s.store.State()
		return []any{st.RawData, st.Filters.Volume, st.Filters.Category}
	})
	s.collection = NewMemo(func() *geojson.FeatureCollection {
		return Collection(s.FilteredData())
	}, func() []any {
		return []any{s.FilteredData()}
	})
	s.layerIDs = NewMemo(func() []string {
		return layers.IDsFor(s.store.Mode())
	}, func() []any {
		return []any{s.store.Mode()}
	})
	s.config = NewMemo(s.computeConfig, func() []any {
		st := s.store.State()
		return []any{st.Mode, st.Cluster, st.Heatmap, st.Markers, st.Colors}
	})
	s.stats = NewMemo(s.computeStats, func() []any {
		return []any{s.store.Points(), s.FilteredData()}
	})
	s.bounds = NewMemo(func() boundResult {
		b, ok := Bounds(s.FilteredData())
		return boundResult{b, ok}
	}, func() []any {
		return []any{s.FilteredData()}
	})
	s.categories = NewMemo(func() []string {
		return distinctCategories(s.store.Points())
	}, func() []any {
		return []any{s.store.Points()}
	})
	return s
}

// FilteredData returns the points matching the category and volume filters,
// in dataset order. The result is shared and must not be modified.
func (s *Selectors) FilteredData() []state.LocationPoint {
	return s.filtered.Get()
}

// FilteredCount is len(FilteredData()).
func (s *Selectors) FilteredCount() int {
	return len(s.FilteredData())
}

// FilteredCollection returns the filtered points as a feature collection.
// ok is false when nothing passes the filters; callers must then attach no
// source at all.
func (s *Selectors) FilteredCollection() (fc *geojson.FeatureCollection, ok bool) {
	fc = s.collection.Get()
	return fc, fc != nil
}

// ActiveLayerIDs returns the layer ids of the current mode. The caller owns
// the returned slice.
func (s *Selectors) ActiveLayerIDs() []string {
	return slices.Clone(s.layerIDs.Get())
}

// CurrentLayerConfig flattens the active mode's settings with the color
// pair. It is nil for an unknown mode.
func (s *Selectors) CurrentLayerConfig() layers.Config {
	return s.config.Get()
}

// DataStats summarizes the filtered dataset.
func (s *Selectors) DataStats() Stats {
	return s.stats.Get()
}

// HasActiveFilters reports whether either filter is narrowing the dataset.
func (s *Selectors) HasActiveFilters() bool {
	f := s.store.Filters()
	return f.Volume != state.VolumeAll || f.Category != state.CategoryAll
}

// FilteredBounds returns the bounding box of the filtered points. ok is false
// when nothing passes the filters.
func (s *Selectors) FilteredBounds() (orb.Bound, bool) {
	r := s.bounds.Get()
	return r.bound, r.ok
}

// Categories lists the distinct categories of the whole dataset, sorted.
func (s *Selectors) Categories() []string {
	return s.categories.Get()
}

func (s *Selectors) computeFiltered() []state.LocationPoint {
	st := s.store.State()
	return Filter(st.RawData, st.Filters)
}

func (s *Selectors) computeConfig() layers.Config {
	st := s.store.State()
	cfg := layers.ConfigFor(st.Mode, st)
	if cfg == nil {
		s.log.Warn("no layer config for mode", "mode", st.Mode)
	}
	return cfg
}

func (s *Selectors) computeStats() Stats {
	return Summarize(len(s.store.Points()), s.FilteredData())
}

// Filter returns the points of data passing f.
func Filter(data []state.LocationPoint, f state.Filters) []state.LocationPoint {
	lo, hi, bounded := f.Volume.Range()
	out := make([]state.LocationPoint, 0, len(data))
	for _, p := range data {
		if f.Category != state.CategoryAll && p.Category != f.Category {
			continue
		}
		if bounded && (p.RecyclingVolume < lo || p.RecyclingVolume > hi) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Collection builds a point feature collection, or nil for no points.
func Collection(points []state.LocationPoint) *geojson.FeatureCollection {
	if len(points) == 0 {
		return nil
	}
	return state.NewCollection(points)
}

// Bounds returns the bounding box of points. ok is false for no points.
func Bounds(points []state.LocationPoint) (orb.Bound, bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.Lng, p.Lat}
	}
	return mp.Bound(), true
}

// Summarize computes Stats for filtered out of total points.
func Summarize(total int, filtered []state.LocationPoint) Stats {
	st := Stats{
		Total:      total,
		Filtered:   len(filtered),
		Categories: make(map[string]int),
	}
	if total > 0 {
		st.FilterPercentage = int(math.Round(float64(len(filtered)) / float64(total) * 100))
	}
	sum := 0
	for _, p := range filtered {
		st.Categories[p.Category]++
		sum += p.RecyclingVolume
		switch {
		case inBucket(p.RecyclingVolume, state.VolumeSmall):
			st.VolumeDistribution.Small++
		case inBucket(p.RecyclingVolume, state.VolumeMedium):
			st.VolumeDistribution.Medium++
		case inBucket(p.RecyclingVolume, state.VolumeLarge):
			st.VolumeDistribution.Large++
		}
	}
	if len(filtered) > 0 {
		st.AvgVolume = math.Round(float64(sum)/float64(len(filtered))*10) / 10
	}
	return st
}

func inBucket(v int, b state.VolumeFilter) bool {
	lo, hi, _ := b.Range()
	return v >= lo && v <= hi
}

func distinctCategories(points []state.LocationPoint) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range points {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}
