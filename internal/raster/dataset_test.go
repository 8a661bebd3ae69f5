package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
)

var testExtent = domain.BoundingBox{MinLon: -4, MinLat: 50, MaxLon: 0, MaxLat: 54}

func constantImage(w, h int, v float32) *geotiff.Image {
	img := &geotiff.Image{Width: w, Height: h, Data: make([]float32, w*h)}
	for i := range img.Data {
		img.Data[i] = v
	}
	return img
}

func TestResample_ConstantRoundTrip(t *testing.T) {
	ds, err := NewDataset(constantImage(13, 9, 42.5), testExtent)
	require.NoError(t, err)

	boxes := []domain.BoundingBox{
		testExtent,
		{MinLon: -3.3, MinLat: 51.1, MaxLon: -2.9, MaxLat: 51.4},
		{MinLon: -10, MinLat: 40, MaxLon: 10, MaxLat: 60},
	}
	sizes := [][2]int{{1, 1}, {3, 7}, {64, 64}}

	for _, b := range boxes {
		for _, s := range sizes {
			for _, v := range ds.Bilinear(b, s[0], s[1]) {
				require.Equal(t, float32(42.5), v, "bilinear %v %v", b, s)
			}
			for _, v := range ds.Nearest(b, s[0], s[1]) {
				require.Equal(t, float32(42.5), v, "nearest %v %v", b, s)
			}
		}
	}
}

func TestNewDataset_NoDataBecomesNaN(t *testing.T) {
	nodata := 255.0
	img := &geotiff.Image{Width: 4, Height: 1, Data: []float32{1, -9999, -32768, 255}, NoData: &nodata}
	ds, err := NewDataset(img, testExtent)
	require.NoError(t, err)

	assert.Equal(t, float32(1), ds.Values[0])
	for _, v := range ds.Values[1:] {
		assert.True(t, math.IsNaN(float64(v)))
	}
}

func TestNewDataset_UsesGeoreferencedBounds(t *testing.T) {
	img := constantImage(10, 5, 1)
	img.Georeferenced = true
	img.Bounds = geotiff.Bounds{MinLon: 0, MinLat: 40, MaxLon: 10, MaxLat: 45}

	ds, err := NewDataset(img, testExtent)
	require.NoError(t, err)
	assert.Equal(t, domain.BoundingBox{MinLon: 0, MinLat: 40, MaxLon: 10, MaxLat: 45}, ds.Bounds)
	assert.InDelta(t, 1.0, ds.PixelWidth, 1e-12)
	assert.InDelta(t, 1.0, ds.PixelHeight, 1e-12)
}

func TestNewDataset_Errors(t *testing.T) {
	_, err := NewDataset(&geotiff.Image{Width: 2, Height: 2, Data: []float32{1}}, testExtent)
	assert.Error(t, err)

	_, err = NewDataset(constantImage(2, 2, 0), domain.BoundingBox{})
	assert.ErrorIs(t, err, domain.ErrInvalidBBox)
}

func TestSampleBilinear_Interpolates(t *testing.T) {
	// 2x1 raster over lon 0..2: pixel centres at lon 0.5 and 1.5.
	img := &geotiff.Image{Width: 2, Height: 1, Data: []float32{10, 20}}
	ds, err := NewDataset(img, domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 2, MaxLat: 1})
	require.NoError(t, err)

	tests := []struct {
		lon  float64
		want float32
	}{
		{0.5, 10},
		{1.0, 15},
		{1.25, 17.5},
		{1.5, 20},
		{0.0, 10}, // clamped to first centre
		{5.0, 20}, // outside the extent
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ds.SampleBilinear(0.5, tt.lon), 1e-5, "lon %v", tt.lon)
	}
}

func TestSampleNearest_PicksContainingPixel(t *testing.T) {
	img := &geotiff.Image{Width: 3, Height: 2, Data: []float32{1, 2, 3, 4, 5, 6}}
	ds, err := NewDataset(img, domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 3, MaxLat: 2})
	require.NoError(t, err)

	assert.Equal(t, float32(1), ds.SampleNearest(1.9, 0.2))
	assert.Equal(t, float32(2), ds.SampleNearest(1.9, 1.4))
	assert.Equal(t, float32(6), ds.SampleNearest(0.1, 2.9))
	assert.Equal(t, float32(4), ds.SampleNearest(-5, -5))
}

func TestResample_RowZeroIsNorth(t *testing.T) {
	img := &geotiff.Image{Width: 1, Height: 2, Data: []float32{100, 0}}
	ds, err := NewDataset(img, domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 2})
	require.NoError(t, err)

	got := ds.Nearest(domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 2}, 1, 2)
	assert.Equal(t, []float32{100, 0}, got)
}

func TestResample_EmptyShape(t *testing.T) {
	ds, err := NewDataset(constantImage(2, 2, 1), testExtent)
	require.NoError(t, err)
	assert.Nil(t, ds.Bilinear(testExtent, 0, 4))
}
