// Package raster holds decoded source rasters and resamples them onto
// request grids.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
)

// NoDataThreshold is the sentinel at or below which samples carry no
// measurement.
const NoDataThreshold = -9999

// Dataset is a full source raster with its geographic placement. Values is
// row-major with row 0 at MaxLat; missing samples are NaN. A Dataset is
// shared read-only once loaded.
type Dataset struct {
	Width       int
	Height      int
	Bounds      domain.BoundingBox
	PixelWidth  float64
	PixelHeight float64
	Values      []float32
}

// NewDataset converts a decoded image. Images without georeferencing are
// placed on fallback.
func NewDataset(img *geotiff.Image, fallback domain.BoundingBox) (*Dataset, error) {
	if img.Width <= 0 || img.Height <= 0 || len(img.Data) != img.Width*img.Height {
		return nil, errors.New("raster dimensions do not match sample count")
	}

	bounds := fallback
	if img.Georeferenced {
		bounds = domain.BoundingBox{
			MinLon: img.Bounds.MinLon,
			MinLat: img.Bounds.MinLat,
			MaxLon: img.Bounds.MaxLon,
			MaxLat: img.Bounds.MaxLat,
		}
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("dataset extent: %w", err)
	}

	values := make([]float32, len(img.Data))
	for i, v := range img.Data {
		if isNoData(v, img.NoData) {
			values[i] = float32(math.NaN())
			continue
		}
		values[i] = v
	}

	return &Dataset{
		Width:       img.Width,
		Height:      img.Height,
		Bounds:      bounds,
		PixelWidth:  bounds.LonSpan() / float64(img.Width),
		PixelHeight: bounds.LatSpan() / float64(img.Height),
		Values:      values,
	}, nil
}

func isNoData(v float32, nodata *float64) bool {
	if v <= NoDataThreshold {
		return true
	}
	return nodata != nil && float64(v) == *nodata
}

// pixel maps a geographic point to fractional pixel coordinates, where
// integer coordinates are pixel centres. Results are clamped to the raster.
func (d *Dataset) pixel(lat, lon float64) (px, py float64) {
	b := d.Bounds
	lon = clamp(lon, b.MinLon, b.MaxLon)
	lat = clamp(lat, b.MinLat, b.MaxLat)
	px = clamp((lon-b.MinLon)/d.PixelWidth-0.5, 0, float64(d.Width-1))
	py = clamp((b.MaxLat-lat)/d.PixelHeight-0.5, 0, float64(d.Height-1))
	return px, py
}

func (d *Dataset) at(x, y int) float32 {
	return d.Values[y*d.Width+x]
}

// SampleBilinear interpolates the four pixels surrounding a point.
func (d *Dataset) SampleBilinear(lat, lon float64) float32 {
	px, py := d.pixel(lat, lon)
	x0, y0 := int(math.Floor(px)), int(math.Floor(py))
	x1, y1 := min(x0+1, d.Width-1), min(y0+1, d.Height-1)
	fx, fy := px-float64(x0), py-float64(y0)

	var sum float64
	add := func(x, y int, w float64) {
		if w == 0 {
			return
		}
		sum += float64(d.at(x, y)) * w
	}
	add(x0, y0, (1-fx)*(1-fy))
	add(x1, y0, fx*(1-fy))
	add(x0, y1, (1-fx)*fy)
	add(x1, y1, fx*fy)
	return float32(sum)
}

// SampleNearest returns the pixel closest to a point.
func (d *Dataset) SampleNearest(lat, lon float64) float32 {
	px, py := d.pixel(lat, lon)
	return d.at(int(math.Round(px)), int(math.Round(py)))
}

// Bilinear resamples the dataset onto a width x height grid over bbox using
// cell centres. Use it for continuous properties.
func (d *Dataset) Bilinear(bbox domain.BoundingBox, width, height int) []float32 {
	return d.resample(bbox, width, height, d.SampleBilinear)
}

// Nearest resamples with nearest-neighbour lookup. Use it for class codes.
func (d *Dataset) Nearest(bbox domain.BoundingBox, width, height int) []float32 {
	return d.resample(bbox, width, height, d.SampleNearest)
}

func (d *Dataset) resample(bbox domain.BoundingBox, width, height int, sample func(lat, lon float64) float32) []float32 {
	if width <= 0 || height <= 0 {
		return nil
	}
	out := make([]float32, width*height)
	for y := range height {
		for x := range width {
			lat, lon := bbox.CellCenter(x, y, width, height)
			out[y*width+x] = sample(lat, lon)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
