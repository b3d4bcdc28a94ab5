// Package tiles cuts point collections into Mapbox vector tiles, either one
// tile at a time for HTTP serving or as a zoom pyramid packed into a PMTiles
// archive.
package tiles

import (
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-geoviz/internal/pmtiles"
)

// MaxZoom is the deepest zoom tiles are cut for.
const MaxZoom maptile.Zoom = 14

// ErrOutOfRange is returned for tile coordinates outside the zoom's grid.
var ErrOutOfRange = errors.New("tile out of range")

// Validate checks that z/x/y address a real tile.
func Validate(z, x, y int) (maptile.Tile, error) {
	if z < 0 || z > int(MaxZoom) {
		return maptile.Tile{}, fmt.Errorf("%w: zoom %d", ErrOutOfRange, z)
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return maptile.Tile{}, fmt.Errorf("%w: %d/%d/%d", ErrOutOfRange, z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// Encode renders the point features of fc inside t as one layer. It returns
// nil when no feature falls in the tile.
func Encode(fc *geojson.FeatureCollection, t maptile.Tile, layer string, gzip bool) ([]byte, error) {
	if fc == nil {
		return nil, nil
	}
	return encode(t, inTile(fc.Features, t.Bound()), layer, gzip)
}

func inTile(features []*geojson.Feature, b orb.Bound) []*geojson.Feature {
	var out []*geojson.Feature
	for _, f := range features {
		if p, ok := f.Geometry.(orb.Point); ok && b.Contains(p) {
			out = append(out, f)
		}
	}
	return out
}

// encode projects copies of the features; mvt mutates geometry in place.
func encode(t maptile.Tile, features []*geojson.Feature, layer string, gzip bool) ([]byte, error) {
	if len(features) == 0 {
		return nil, nil
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		p := f.Geometry.(orb.Point)
		clone := geojson.NewFeature(orb.Point{p[0], p[1]})
		clone.ID = f.ID
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}

	l := mvt.NewLayer(layer, fc)
	l.ProjectToTile(t)
	l.RemoveEmpty(0, 0)
	if len(l.Features) == 0 {
		return nil, nil
	}

	layers := mvt.Layers{l}
	if gzip {
		return mvt.MarshalGzipped(layers)
	}
	return mvt.Marshal(layers)
}

// Pyramid cuts every non-empty tile from minZoom to maxZoom. Tiles are
// gzip-compressed.
func Pyramid(fc *geojson.FeatureCollection, minZoom, maxZoom maptile.Zoom, layer string) (map[maptile.Tile][]byte, error) {
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	out := make(map[maptile.Tile][]byte)
	if fc == nil {
		return out, nil
	}
	for z := minZoom; z <= maxZoom; z++ {
		byTile := make(map[maptile.Tile][]*geojson.Feature)
		for _, f := range fc.Features {
			p, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			t := maptile.At(p, z)
			byTile[t] = append(byTile[t], f)
		}
		for t, features := range byTile {
			data, err := encode(t, features, layer, true)
			if err != nil {
				return nil, fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
			}
			if data != nil {
				out[t] = data
			}
		}
	}
	return out, nil
}

// WriteArchive writes fc as a PMTiles archive and returns the tile count.
func WriteArchive(w io.Writer, fc *geojson.FeatureCollection, minZoom, maxZoom maptile.Zoom, layer string) (int, error) {
	tiles, err := Pyramid(fc, minZoom, maxZoom, layer)
	if err != nil {
		return 0, err
	}
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	archive := pmtiles.Archive{
		Name:    layer,
		MinZoom: minZoom,
		MaxZoom: maxZoom,
		Metadata: map[string]any{
			"vector_layers": []map[string]any{{
				"id":      layer,
				"minzoom": minZoom,
				"maxzoom": maxZoom,
				"fields": map[string]string{
					"id": "Number", "category": "String", "metro": "String", "recyclingVolume": "Number",
				},
			}},
		},
	}
	if fc != nil && len(fc.Features) > 0 {
		archive.Bound = fc.Features[0].Geometry.Bound()
		for _, f := range fc.Features[1:] {
			archive.Bound = archive.Bound.Union(f.Geometry.Bound())
		}
	}
	if err := pmtiles.Write(w, archive, tiles); err != nil {
		return 0, err
	}
	return len(tiles), nil
}
