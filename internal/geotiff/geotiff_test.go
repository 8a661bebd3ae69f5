package geotiff

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampImage(w, h int) *Image {
	img := &Image{Width: w, Height: h, Data: make([]float32, w*h)}
	for i := range img.Data {
		img.Data[i] = float32(i) * 0.5
	}
	return img
}

func encode(t *testing.T, img *Image, opts EncodeOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, opts))
	return buf.Bytes()
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts EncodeOptions
	}{
		{"float uncompressed", EncodeOptions{}},
		{"float deflate", EncodeOptions{Compression: CompressionDeflate}},
		{"multi strip", EncodeOptions{RowsPerStrip: 2}},
		{"multi strip deflate", EncodeOptions{RowsPerStrip: 3, Compression: CompressionDeflate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rampImage(7, 5)
			got, err := Decode(encode(t, src, tt.opts))
			require.NoError(t, err)

			assert.Equal(t, 7, got.Width)
			assert.Equal(t, 5, got.Height)
			assert.Equal(t, 32, got.BitsPerSample)
			assert.Equal(t, SampleFloat, got.SampleFormat)
			assert.Equal(t, src.Data, got.Data)
			assert.False(t, got.Georeferenced)
			assert.Nil(t, got.NoData)
		})
	}
}

func TestEncodeDecode_IntegerFormats(t *testing.T) {
	tests := []struct {
		name   string
		format int
		bits   int
		in     []float32
		want   []float32
	}{
		{"uint8 clamps", SampleUint, 8, []float32{0, 10, 255, 300}, []float32{0, 10, 255, 255}},
		{"uint16", SampleUint, 16, []float32{0, 1000, 65535, -5}, []float32{0, 1000, 65535, 0}},
		{"int16 keeps sign", SampleInt, 16, []float32{-32768, -1, 1, 32767}, []float32{-32768, -1, 1, 32767}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &Image{Width: 2, Height: 2, Data: tt.in}
			got, err := Decode(encode(t, src, EncodeOptions{SampleFormat: tt.format, BitsPerSample: tt.bits}))
			require.NoError(t, err)
			assert.Equal(t, tt.bits, got.BitsPerSample)
			assert.Equal(t, tt.format, got.SampleFormat)
			assert.Equal(t, tt.want, got.Data)
		})
	}
}

func TestEncodeDecode_GeoreferencingAndNoData(t *testing.T) {
	nodata := -32768.0
	src := rampImage(4, 2)
	src.Georeferenced = true
	src.Bounds = Bounds{MinLon: -4, MinLat: 50, MaxLon: 0, MaxLat: 52}
	src.NoData = &nodata

	got, err := Decode(encode(t, src, EncodeOptions{}))
	require.NoError(t, err)

	require.True(t, got.Georeferenced)
	assert.InDelta(t, -4, got.Bounds.MinLon, 1e-9)
	assert.InDelta(t, 0, got.Bounds.MaxLon, 1e-9)
	assert.InDelta(t, 50, got.Bounds.MinLat, 1e-9)
	assert.InDelta(t, 52, got.Bounds.MaxLat, 1e-9)
	assert.InDelta(t, 1.0, got.PixelWidth, 1e-9)
	assert.InDelta(t, 1.0, got.PixelHeight, 1e-9)
	require.NotNil(t, got.NoData)
	assert.Equal(t, nodata, *got.NoData)
}

func TestDecode_PixelIsPointShiftsBounds(t *testing.T) {
	data := testTIFF{
		width: 2, height: 2, bits: 8,
		chunks:     [][]byte{{1, 2, 3, 4}},
		pixelScale: []float64{0.5, 0.5, 0},
		tiepoint:   []float64{0, 0, 0, 10, 20, 0},
		geoKeys:    []uint16{1, 1, 0, 1, keyRasterType, 0, 1, rasterPixelIsPoint},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.InDelta(t, 9.75, got.Bounds.MinLon, 1e-9)
	assert.InDelta(t, 20.25, got.Bounds.MaxLat, 1e-9)
	assert.InDelta(t, 10.75, got.Bounds.MaxLon, 1e-9)
	assert.InDelta(t, 19.25, got.Bounds.MinLat, 1e-9)
}

func TestDecode_BigEndianLZW(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 1, 1, 1}
	var comp bytes.Buffer
	zw := lzw.NewWriter(&comp, lzw.MSB, 8)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := testTIFF{
		order: binary.BigEndian,
		width: 4, height: 4, bits: 8,
		compression: CompressionLZW,
		chunks:      [][]byte{comp.Bytes()},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CompressionLZW, got.Compression)
	want := make([]float32, len(raw))
	for i, b := range raw {
		want[i] = float32(b)
	}
	assert.Equal(t, want, got.Data)
}

func TestDecode_PackBits(t *testing.T) {
	// Repeat 7 four times, then the literal run 1 2 3 4.
	packed := []byte{0xfd, 7, 3, 1, 2, 3, 4}
	data := testTIFF{
		width: 4, height: 2, bits: 8,
		compression: CompressionPackBits,
		chunks:      [][]byte{packed},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 7, 7, 7, 1, 2, 3, 4}, got.Data)
}

func TestDecode_HorizontalPredictor(t *testing.T) {
	data := testTIFF{
		width: 4, height: 2, bits: 8,
		predictor: predictorHorizontal,
		chunks:    [][]byte{{10, 1, 1, 1, 50, 0xff, 0xff, 2}},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 11, 12, 13, 50, 49, 48, 50}, got.Data)
}

func TestDecode_PredictorDoesNotMutateInput(t *testing.T) {
	data := testTIFF{
		width: 2, height: 1, bits: 8,
		predictor: predictorHorizontal,
		chunks:    [][]byte{{5, 5}},
	}.build(t)
	before := bytes.Clone(data)

	_, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, before, data)
}

func TestDecode_Tiles(t *testing.T) {
	// 3x3 image in 2x2 tiles; edge tiles are padded.
	data := testTIFF{
		width: 3, height: 3, bits: 8,
		tileW: 2, tileH: 2,
		chunks: [][]byte{
			{1, 2, 4, 5},
			{3, 0, 6, 0},
			{7, 8, 0, 0},
			{9, 0, 0, 0},
		},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, got.Data)
}

func TestDecode_ShortFinalStripIsZeroFilled(t *testing.T) {
	data := testTIFF{
		width: 2, height: 3, bits: 8,
		rowsPerStrip: 2,
		chunks:       [][]byte{{1, 2, 3, 4}, {5}},
	}.build(t)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 0}, got.Data)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr string
		unsup   bool
	}{
		{"too short", []byte{'I'}, "truncated", false},
		{"no marker", []byte("GIF89a.."), "byte-order", false},
		{"bad magic", []byte{'I', 'I', 7, 0, 8, 0, 0, 0}, "magic", false},
		{"bigtiff", []byte{'I', 'I', 43, 0, 8, 0, 0, 0}, "BigTIFF", true},
		{"ifd out of range", []byte{'I', 'I', 42, 0, 0xff, 0, 0, 0}, "beyond end", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.unsup, errors.Is(err, ErrUnsupported))
		})
	}
}

func TestDecode_UnsupportedBitDepth(t *testing.T) {
	data := testTIFF{width: 1, height: 1, bits: 4, chunks: [][]byte{{0}}}.build(t)
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEncode_RejectsMismatchedData(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &Image{Width: 2, Height: 2, Data: []float32{1}}, EncodeOptions{})
	assert.Error(t, err)
}
