// Package pmtiles writes single-directory PMTiles v3 archives of gzipped
// MVT tiles.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

const magic = "PMTiles"

// Values of the compression and tile type header bytes used by this package.
const (
	CompressionGzip uint8 = 2
	TileTypeMVT     uint8 = 1
)

var ErrBadHeader = errors.New("invalid pmtiles header")

// Header is the archive header. Offsets and lengths are in bytes from the
// start of the file.
type Header struct {
	Version        uint8
	RootOffset     uint64
	RootLength     uint64
	MetadataOffset uint64
	MetadataLength uint64
	LeafOffset     uint64
	LeafLength     uint64
	DataOffset     uint64
	DataLength     uint64
	AddressedTiles uint64
	TileEntries    uint64
	TileContents   uint64

	Clustered           bool
	InternalCompression uint8
	TileCompression     uint8
	TileType            uint8
	MinZoom             uint8
	MaxZoom             uint8

	// Bounds and center in degrees * 1e7.
	MinLon, MinLat int32
	MaxLon, MaxLat int32
	CenterZoom     uint8
	CenterLon      int32
	CenterLat      int32
}

// MarshalBinary encodes h in the little-endian v3 layout.
func (h Header) MarshalBinary() []byte {
	b := make([]byte, 0, HeaderLen)
	b = append(b, magic...)
	b = append(b, 3)
	for _, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		h.LeafOffset, h.LeafLength,
		h.DataOffset, h.DataLength,
		h.AddressedTiles, h.TileEntries, h.TileContents,
	} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	var clustered uint8
	if h.Clustered {
		clustered = 1
	}
	b = append(b, clustered, h.InternalCompression, h.TileCompression, h.TileType, h.MinZoom, h.MaxZoom)
	for _, v := range []int32{h.MinLon, h.MinLat, h.MaxLon, h.MaxLat} {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	b = append(b, h.CenterZoom)
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLon))
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLat))
	return b
}

// ParseHeader decodes the first HeaderLen bytes of d.
func ParseHeader(d []byte) (Header, error) {
	if len(d) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(d))
	}
	if string(d[:len(magic)]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	r := cursor(d[len(magic):])
	h := Header{Version: r.u8()}
	for _, f := range []*uint64{
		&h.RootOffset, &h.RootLength,
		&h.MetadataOffset, &h.MetadataLength,
		&h.LeafOffset, &h.LeafLength,
		&h.DataOffset, &h.DataLength,
		&h.AddressedTiles, &h.TileEntries, &h.TileContents,
	} {
		*f = r.u64()
	}
	h.Clustered = r.u8() == 1
	h.InternalCompression = r.u8()
	h.TileCompression = r.u8()
	h.TileType = r.u8()
	h.MinZoom = r.u8()
	h.MaxZoom = r.u8()
	for _, f := range []*int32{&h.MinLon, &h.MinLat, &h.MaxLon, &h.MaxLat} {
		*f = r.i32()
	}
	h.CenterZoom = r.u8()
	h.CenterLon = r.i32()
	h.CenterLat = r.i32()
	return h, nil
}

type cursor []byte

func (c *cursor) u8() uint8 {
	v := (*c)[0]
	*c = (*c)[1:]
	return v
}

func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(*c)
	*c = (*c)[8:]
	return v
}

func (c *cursor) i32() int32 {
	v := binary.LittleEndian.Uint32(*c)
	*c = (*c)[4:]
	return int32(v)
}

// TileID is the position of t on the Hilbert curve covering every zoom level
// up to and including t.Z.
func TileID(t maptile.Tile) uint64 {
	z := uint(t.Z)
	id := (uint64(1)<<(2*z) - 1) / 3
	n := uint32(1) << z
	x, y := t.X, t.Y
	for s := n >> 1; s > 0; s >>= 1 {
		var rx, ry uint32
		if x&s != 0 {
			rx = 1
		}
		if y&s != 0 {
			ry = 1
		}
		id += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		if ry == 0 {
			if rx == 1 {
				x, y = n-1-x, n-1-y
			}
			x, y = y, x
		}
	}
	return id
}

// entry is one run of the root directory.
type entry struct {
	id     uint64
	offset uint64
	length uint32
}

// encodeDirectory writes entries (sorted by id, run length 1) as a gzipped
// columnar varint directory.
func encodeDirectory(entries []entry) ([]byte, error) {
	b := binary.AppendUvarint(nil, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		b = binary.AppendUvarint(b, e.id-last)
		last = e.id
	}
	for range entries {
		b = binary.AppendUvarint(b, 1)
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, uint64(e.length))
	}
	for i, e := range entries {
		if i > 0 && e.offset == entries[i-1].offset+uint64(entries[i-1].length) {
			b = binary.AppendUvarint(b, 0)
			continue
		}
		b = binary.AppendUvarint(b, e.offset+1)
	}
	return gzipBytes(b)
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return gzipBytes(data)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
