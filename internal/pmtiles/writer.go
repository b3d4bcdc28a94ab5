package pmtiles

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ErrNoTiles is returned when asked to write an empty archive.
var ErrNoTiles = errors.New("no tiles to write")

// Archive describes the tile set being written. Tiles must already be
// gzip-compressed MVT.
type Archive struct {
	Name    string
	MinZoom maptile.Zoom
	MaxZoom maptile.Zoom
	Bound   orb.Bound
	// Metadata is merged into the archive metadata JSON.
	Metadata map[string]any
}

// Write encodes tiles as a clustered archive with one root directory and no
// leaf directories.
func Write(w io.Writer, a Archive, tiles map[maptile.Tile][]byte) error {
	if len(tiles) == 0 {
		return ErrNoTiles
	}

	keys := slices.Collect(maps.Keys(tiles))
	ids := make(map[maptile.Tile]uint64, len(keys))
	for _, t := range keys {
		ids[t] = TileID(t)
	}
	slices.SortFunc(keys, func(p, q maptile.Tile) int { return cmp.Compare(ids[p], ids[q]) })

	entries := make([]entry, 0, len(keys))
	var data bytes.Buffer
	for _, t := range keys {
		entries = append(entries, entry{id: ids[t], offset: uint64(data.Len()), length: uint32(len(tiles[t]))})
		data.Write(tiles[t])
	}

	meta := map[string]any{
		"name":        a.Name,
		"format":      "pbf",
		"compression": "gzip",
		"minzoom":     a.MinZoom,
		"maxzoom":     a.MaxZoom,
	}
	maps.Copy(meta, a.Metadata)
	metaBytes, err := encodeMetadata(meta)
	if err != nil {
		return err
	}
	root, err := encodeDirectory(entries)
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}

	center := a.Bound.Center()
	h := Header{
		Version:             3,
		RootOffset:          HeaderLen,
		RootLength:          uint64(len(root)),
		MetadataOffset:      HeaderLen + uint64(len(root)),
		MetadataLength:      uint64(len(metaBytes)),
		DataOffset:          HeaderLen + uint64(len(root)) + uint64(len(metaBytes)),
		DataLength:          uint64(data.Len()),
		AddressedTiles:      uint64(len(entries)),
		TileEntries:         uint64(len(entries)),
		TileContents:        uint64(len(entries)),
		Clustered:           true,
		InternalCompression: CompressionGzip,
		TileCompression:     CompressionGzip,
		TileType:            TileTypeMVT,
		MinZoom:             uint8(a.MinZoom),
		MaxZoom:             uint8(a.MaxZoom),
		MinLon:              e7(a.Bound.Min.Lon()),
		MinLat:              e7(a.Bound.Min.Lat()),
		MaxLon:              e7(a.Bound.Max.Lon()),
		MaxLat:              e7(a.Bound.Max.Lat()),
		CenterZoom:          uint8(a.MinZoom),
		CenterLon:           e7(center.Lon()),
		CenterLat:           e7(center.Lat()),
	}

	for _, part := range [][]byte{h.MarshalBinary(), root, metaBytes, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

func e7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}
