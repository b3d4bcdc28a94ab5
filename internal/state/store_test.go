package state

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownPath(t *testing.T) {
	s := New()

	v, ok := s.Get("filters.nope")
	assert.False(t, ok)
	assert.Nil(t, v)

	v, ok = s.Get("a.b.c")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestSetNotifiesExactParentAndWildcard(t *testing.T) {
	s := New()

	var exact, parent, wild []Change
	s.Subscribe(PathFilterVolume, func(c Change) { exact = append(exact, c) })
	s.Subscribe(PathFilters, func(c Change) { parent = append(parent, c) })
	s.Subscribe(Wildcard, func(c Change) { wild = append(wild, c) })

	require.NoError(t, s.Set(PathFilterVolume, VolumeLarge))

	require.Len(t, exact, 1)
	assert.Equal(t, Change{Path: PathFilterVolume, Value: VolumeLarge}, exact[0])

	require.Len(t, parent, 1)
	assert.Equal(t, PathFilters, parent[0].Path)
	assert.Equal(t, Filters{Volume: VolumeLarge, Category: CategoryAll}, parent[0].Value)

	require.Len(t, wild, 1)
	assert.Equal(t, PathFilterVolume, wild[0].Path)
}

func TestSetSameValueIsNoop(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(Wildcard, func(Change) { calls++ })

	require.NoError(t, s.Set(PathMode, ModeClusters))
	require.NoError(t, s.Set(PathClusterRadius, 50))
	require.NoError(t, s.Set(PathClusterRadius, 50.0))
	assert.Zero(t, calls)

	points := []LocationPoint{{ID: 1, RecyclingVolume: 3}}
	require.NoError(t, s.Set(PathRawData, points))
	require.NoError(t, s.Set(PathRawData, points))
	assert.Equal(t, 1, calls)
}

func TestSetRejectsBadTypes(t *testing.T) {
	s := New()

	err := s.Set(PathClusterRadius, "wide")
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	err = s.Set(PathClusterRadius, 12.5)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	err = s.Set("cluster.nope", 1)
	assert.True(t, errors.Is(err, ErrUnknownPath))

	err = s.Set(PathMode, "bogus")
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	s.SetMultiple(PathValue{Path: PathMode, Value: Mode("3d")})
	assert.Equal(t, ModeClusters, s.Mode())
	require.NoError(t, s.Set(PathMode, "heatmap"))

	assert.Equal(t, 50, s.State().Cluster.Radius)
	assert.Equal(t, ModeHeatmap, s.Mode())
}

func TestSetCompoundNotifiesChangedChildren(t *testing.T) {
	s := New()
	var volume, category int
	s.Subscribe(PathFilterVolume, func(Change) { volume++ })
	s.Subscribe(PathFilterCategory, func(Change) { category++ })

	require.NoError(t, s.Set(PathFilters, Filters{Volume: VolumeSmall, Category: CategoryAll}))

	assert.Equal(t, 1, volume)
	assert.Zero(t, category)
}

func TestSetValidatedAcceptsValidValues(t *testing.T) {
	cases := []struct {
		path Path
		in   any
		want any
	}{
		{PathMode, ModeHeatmap, ModeHeatmap},
		{PathMode, "markers", ModeMarkers},
		{PathFilterVolume, "medium", VolumeMedium},
		{PathFilterCategory, "Glass", "Glass"},
		{PathClusterRadius, 10, 10},
		{PathClusterRadius, 200.0, 200},
		{PathClusterMaxZoom, 0, 0},
		{PathClusterOpacity, 1.0, 1.0},
		{PathHeatmapIntensity, 0.1, 0.1},
		{PathHeatmapRadius, 100, 100},
		{PathHeatmapOpacity, 0.0, 0.0},
		{PathMarkersBaseSize, 3.0, 3.0},
		{PathMarkersScaleByVolume, false, false},
		{PathColorsPrimary, "#A1b2C3", "#A1b2C3"},
	}
	for _, tc := range cases {
		t.Run(string(tc.path), func(t *testing.T) {
			s := New()
			require.True(t, s.SetValidated(tc.path, tc.in))
			got, ok := s.Get(tc.path)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSetValidatedRejectsAndKeepsState(t *testing.T) {
	cases := []struct {
		path Path
		in   any
	}{
		{PathMode, "globe"},
		{PathFilterVolume, "huge"},
		{PathClusterRadius, 9},
		{PathClusterRadius, 201},
		{PathClusterMaxZoom, 23},
		{PathClusterOpacity, 1.01},
		{PathHeatmapIntensity, 0.05},
		{PathHeatmapIntensity, 5.5},
		{PathHeatmapRadius, 4},
		{PathHeatmapOpacity, -0.1},
		{PathMarkersBaseSize, 0.0},
		{PathMarkersIcon, ""},
		{PathMarkersScaleByVolume, "yes"},
		{PathColorsPrimary, "22c55e"},
		{PathColorsSecondary, "#12345"},
		{PathColorsSecondary, "#GGGGGG"},
		{PathClusterSizeMetric, "area"},
	}
	for _, tc := range cases {
		t.Run(string(tc.path), func(t *testing.T) {
			var rejected []Path
			s := New(WithRejectHook(func(p Path, _ any, _ error) { rejected = append(rejected, p) }))
			before, _ := s.Get(tc.path)
			notified := false
			s.Subscribe(Wildcard, func(Change) { notified = true })

			assert.False(t, s.SetValidated(tc.path, tc.in))

			after, _ := s.Get(tc.path)
			assert.Equal(t, before, after)
			assert.False(t, notified)
			assert.Equal(t, []Path{tc.path}, rejected)
		})
	}
}

func TestSetValidatedMultipleIsAllOrNothing(t *testing.T) {
	s := New()
	rejected := s.SetValidatedMultiple(
		PathValue{Path: PathMode, Value: ModeHeatmap},
		PathValue{Path: PathHeatmapOpacity, Value: 7.0},
	)
	assert.Equal(t, []Path{PathHeatmapOpacity}, rejected)
	assert.Equal(t, ModeClusters, s.Mode())

	rejected = s.SetValidatedMultiple(
		PathValue{Path: PathMode, Value: ModeHeatmap},
		PathValue{Path: PathHeatmapOpacity, Value: 0.5},
	)
	assert.Empty(t, rejected)
	assert.Equal(t, ModeHeatmap, s.Mode())
	assert.Equal(t, 0.5, s.State().Heatmap.Opacity)
}

func TestBatchCoalescesPerPath(t *testing.T) {
	s := New()
	var modes []any
	s.Subscribe(PathMode, func(c Change) { modes = append(modes, c.Value) })

	s.Batch(func() {
		require.NoError(t, s.Set(PathMode, ModeHeatmap))
		require.NoError(t, s.Set(PathMode, ModeMarkers))
		require.NoError(t, s.Set(PathMode, ModeClusters))
		require.NoError(t, s.Set(PathMode, ModeMarkers))
	})

	assert.Equal(t, []any{ModeMarkers}, modes)
}

func TestBatchFlushesInFirstTouchedOrder(t *testing.T) {
	s := New()
	var order []Path
	s.Subscribe(Wildcard, func(c Change) { order = append(order, c.Path) })

	s.Batch(func() {
		_ = s.Set(PathColorsPrimary, "#000000")
		_ = s.Set(PathMode, ModeHeatmap)
		_ = s.Set(PathColorsPrimary, "#111111")
		_ = s.Set(PathClusterOpacity, 0.2)
	})

	assert.Equal(t, []Path{PathColorsPrimary, PathMode, PathClusterOpacity}, order)
}

func TestBatchDefersUntilReturn(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(PathMode, func(Change) { calls++ })

	s.Batch(func() {
		_ = s.Set(PathMode, ModeHeatmap)
		assert.Zero(t, calls)
		s.Batch(func() {
			_ = s.Set(PathMode, ModeMarkers)
		})
		assert.Zero(t, calls, "nested batch must not flush early")
	})
	assert.Equal(t, 1, calls)
}

func TestBatchFlushesOnPanic(t *testing.T) {
	s := New()
	var got []any
	s.Subscribe(PathMode, func(c Change) { got = append(got, c.Value) })

	assert.Panics(t, func() {
		s.Batch(func() {
			_ = s.Set(PathMode, ModeHeatmap)
			panic("boom")
		})
	})
	assert.Equal(t, []any{ModeHeatmap}, got)

	// The store is usable afterwards and no longer batching.
	_ = s.Set(PathMode, ModeMarkers)
	assert.Equal(t, []any{ModeHeatmap, ModeMarkers}, got)
}

func TestParentSubscriberFiresOncePerRound(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(PathFilters, func(Change) { calls++ })

	s.SetMultiple(
		PathValue{Path: PathFilterVolume, Value: VolumeSmall},
		PathValue{Path: PathFilterCategory, Value: "Paper"},
	)
	assert.Equal(t, 1, calls)
}

func TestOnSettledOncePerRound(t *testing.T) {
	s := New()
	settled := 0
	s.OnSettled(func() { settled++ })

	s.SetMultiple(
		PathValue{Path: PathMode, Value: ModeHeatmap},
		PathValue{Path: PathColorsPrimary, Value: "#000000"},
	)
	assert.Equal(t, 1, settled)

	_ = s.Set(PathMode, ModeMarkers)
	assert.Equal(t, 2, settled)

	_ = s.Set(PathMode, ModeMarkers)
	assert.Equal(t, 2, settled, "no-op writes do not settle")
}

func TestUnsubscribe(t *testing.T) {
	s := New()
	calls := 0
	unsub := s.Subscribe(PathMode, func(Change) { calls++ })

	_ = s.Set(PathMode, ModeHeatmap)
	unsub()
	_ = s.Set(PathMode, ModeMarkers)

	assert.Equal(t, 1, calls)
}

func TestListenerMayWriteBack(t *testing.T) {
	s := New()
	s.Subscribe(PathMode, func(c Change) {
		if c.Value == ModeMarkers {
			_ = s.Set(PathAutoSwitched, false)
		}
	})
	require.NoError(t, s.Set(PathAutoSwitched, true))
	require.NoError(t, s.Set(PathMode, ModeMarkers))
	assert.False(t, s.AutoSwitched())
}

func TestSetDatasetIsAtomic(t *testing.T) {
	s := New()
	var seen []Path
	s.Subscribe(PathRawData, func(Change) {
		// Both halves are already replaced when the first listener runs.
		st := s.State()
		assert.Len(t, st.RawData, 1)
		assert.NotNil(t, st.DerivedCollection)
		seen = append(seen, PathRawData)
	})

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{13.4, 52.5}))
	s.SetDataset([]LocationPoint{{ID: 1, Lng: 13.4, Lat: 52.5, RecyclingVolume: 5}}, fc)

	assert.Equal(t, []Path{PathRawData}, seen)
}

func TestResetRestoresDefaultSnapshot(t *testing.T) {
	s := New()
	s.SetValidatedMultiple(
		PathValue{Path: PathMode, Value: ModeMarkers},
		PathValue{Path: PathFilterVolume, Value: VolumeLarge},
		PathValue{Path: PathClusterRadius, Value: 120},
		PathValue{Path: PathHeatmapIntensity, Value: 3.5},
		PathValue{Path: PathMarkersIcon, Value: "pin"},
		PathValue{Path: PathColorsSecondary, Value: "#ff0000"},
	)
	require.NotEqual(t, DefaultSnapshot(), s.Snapshot())

	rounds := 0
	s.OnSettled(func() { rounds++ })
	s.Reset()

	assert.Equal(t, DefaultSnapshot(), s.Snapshot())
	assert.Equal(t, 1, rounds)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	snap.Cluster.Radius = 199

	assert.Equal(t, 50, s.Snapshot().Cluster.Radius)
}

func TestValueTyped(t *testing.T) {
	s := New()
	r, ok := Value[int](s, PathClusterRadius)
	require.True(t, ok)
	assert.Equal(t, 50, r)

	_, ok = Value[string](s, PathClusterRadius)
	assert.False(t, ok)
}
