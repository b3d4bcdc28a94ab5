package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geoviz/internal/layers"
)

func layer(id string) layers.Spec {
	return layers.Spec{ID: id, Type: "circle", Source: layers.SourceID}
}

func readyStyle(t *testing.T) *Style {
	t.Helper()
	s := NewStyle()
	s.MarkReady()
	require.NoError(t, s.AddSource(layers.SourceID, layers.SourceSpec{Type: "geojson"}))
	return s
}

func TestNotReadyRejectsAdds(t *testing.T) {
	s := NewStyle()
	assert.False(t, s.IsStyleReady())
	assert.True(t, errors.Is(s.AddSource("x", layers.SourceSpec{}), ErrStyleNotReady))
	assert.True(t, errors.Is(s.AddLayer(layer("a"), ""), ErrStyleNotReady))
}

func TestLayerOrdering(t *testing.T) {
	s := readyStyle(t)
	require.NoError(t, s.AddLayer(layer("a"), ""))
	require.NoError(t, s.AddLayer(layer("c"), ""))
	require.NoError(t, s.AddLayer(layer("b"), "c"))
	assert.Equal(t, []string{"a", "b", "c"}, s.LayerIDs())

	assert.True(t, errors.Is(s.AddLayer(layer("a"), ""), ErrLayerExists))
	assert.True(t, errors.Is(s.AddLayer(layer("d"), "zzz"), ErrNoLayer))

	require.NoError(t, s.RemoveLayer("b"))
	assert.Equal(t, []string{"a", "c"}, s.LayerIDs())
	assert.True(t, errors.Is(s.RemoveLayer("b"), ErrNoLayer))
}

func TestSourceCannotBeRemovedWhileReferenced(t *testing.T) {
	s := readyStyle(t)
	require.NoError(t, s.AddLayer(layer("a"), ""))

	assert.True(t, errors.Is(s.RemoveSource(layers.SourceID), ErrSourceInUse))
	require.NoError(t, s.RemoveLayer("a"))
	require.NoError(t, s.RemoveSource(layers.SourceID))
	assert.False(t, s.HasSource(layers.SourceID))

	assert.True(t, errors.Is(s.AddLayer(layer("a"), ""), ErrNoSource))
}

func TestSetPaintProperty(t *testing.T) {
	s := readyStyle(t)
	spec := layer("a")
	spec.Paint = map[string]any{"circle-opacity": 0.8}
	require.NoError(t, s.AddLayer(spec, ""))

	require.NoError(t, s.SetPaintProperty("a", "circle-opacity", 0.3))
	assert.Equal(t, 0.3, s.Layers()[0].Paint["circle-opacity"])
	assert.Equal(t, 0.8, spec.Paint["circle-opacity"], "caller's map is not mutated")

	assert.True(t, errors.Is(s.SetPaintProperty("b", "circle-opacity", 1), ErrNoLayer))
}

func TestOpsArePublishedInOrder(t *testing.T) {
	s := NewStyle()
	ch := s.Ops().Subscribe()
	defer s.Ops().Unsubscribe(ch)

	s.MarkReady()
	require.NoError(t, s.AddSource(layers.SourceID, layers.SourceSpec{Type: "geojson"}))
	require.NoError(t, s.AddLayer(layer("a"), ""))
	require.NoError(t, s.RemoveLayer("a"))

	var kinds []OpKind
	var seqs []uint64
	for i := 0; i < 3; i++ {
		op := <-ch
		kinds = append(kinds, op.Kind)
		seqs = append(seqs, op.Seq)
	}
	assert.Equal(t, []OpKind{OpAddSource, OpAddLayer, OpRemoveLayer}, kinds)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestOnStyleReady(t *testing.T) {
	s := NewStyle()
	calls := 0
	cancel := s.OnStyleReady(func() { calls++ })

	s.MarkReady()
	s.MarkReady()
	assert.Equal(t, 1, calls)

	s.Reset()
	assert.False(t, s.IsStyleReady())
	s.MarkReady()
	assert.Equal(t, 2, calls)

	cancel()
	s.Reset()
	s.MarkReady()
	assert.Equal(t, 2, calls)
}

func TestReplay(t *testing.T) {
	s := readyStyle(t)
	require.NoError(t, s.AddLayer(layer("a"), ""))
	require.NoError(t, s.AddLayer(layer("b"), ""))

	ops := s.Replay()
	require.Len(t, ops, 3)
	assert.Equal(t, OpAddSource, ops[0].Kind)
	assert.Equal(t, "a", ops[1].ID)
	assert.Equal(t, "b", ops[2].ID)

	s.Reset()
	assert.Empty(t, s.Replay())
}
