package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileID(t *testing.T) {
	cases := []struct {
		tile maptile.Tile
		want uint64
	}{
		{maptile.New(0, 0, 0), 0},
		{maptile.New(0, 0, 1), 1},
		{maptile.New(0, 1, 1), 2},
		{maptile.New(1, 1, 1), 3},
		{maptile.New(1, 0, 1), 4},
		{maptile.New(0, 0, 2), 5},
		{maptile.New(3, 0, 2), 20},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TileID(c.tile), "%v", c.tile)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version: 3, RootOffset: HeaderLen, RootLength: 10, TileType: TileTypeMVT,
		TileCompression: CompressionGzip, MinZoom: 2, MaxZoom: 9, Clustered: true,
		MinLon: -1245000000, MaxLat: 494000000, CenterLon: -1, CenterZoom: 4,
	}
	b := h.MarshalBinary()
	require.Len(t, b, HeaderLen)

	got, err := ParseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ParseHeader([]byte("short"))
	assert.ErrorIs(t, err, ErrBadHeader)
	b[0] = 'X'
	_, err = ParseHeader(b)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestEncodeDirectory(t *testing.T) {
	dir, err := encodeDirectory([]entry{
		{id: 0, offset: 0, length: 1},
		{id: 1, offset: 1, length: 2},
		{id: 5, offset: 10, length: 3},
	})
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(dir))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var got []uint64
	for len(raw) > 0 {
		v, n := binary.Uvarint(raw)
		require.Positive(t, n)
		got = append(got, v)
		raw = raw[n:]
	}
	// count, id deltas, run lengths, lengths, offsets (0 means contiguous)
	assert.Equal(t, []uint64{3, 0, 1, 4, 1, 1, 1, 1, 2, 3, 1, 0, 11}, got)
}

func TestWrite(t *testing.T) {
	tiles := map[maptile.Tile][]byte{
		maptile.New(0, 0, 1): []byte("bb"),
		maptile.New(0, 0, 0): []byte("a"),
	}
	var buf bytes.Buffer
	err := Write(&buf, Archive{
		Name:    "locations",
		MinZoom: 0,
		MaxZoom: 1,
		Bound:   orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}},
	}, tiles)
	require.NoError(t, err)

	h, err := ParseHeader(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint8(3), h.Version)
	assert.Equal(t, uint64(2), h.TileEntries)
	assert.Equal(t, uint64(3), h.DataLength)
	assert.Equal(t, int32(-100000000), h.MinLon)
	assert.Equal(t, int32(0), h.CenterLon)
	assert.Equal(t, uint64(buf.Len()), h.DataOffset+h.DataLength)
	assert.Equal(t, "abb", string(buf.Bytes()[h.DataOffset:]), "tiles are written in tile id order")

	assert.ErrorIs(t, Write(&buf, Archive{}, nil), ErrNoTiles)
}
