package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidBBox is returned when a bounding box violates its ordering or range invariants.
var ErrInvalidBBox = errors.New("invalid bounding box")

// BoundingBox is a geographic rectangle in degrees. It is passed by value.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Validate checks that the box is finite, ordered, and within geographic range.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidBBox)
		}
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("%w: min_lon %.4f must be less than max_lon %.4f", ErrInvalidBBox, b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: min_lat %.4f must be less than max_lat %.4f", ErrInvalidBBox, b.MinLat, b.MaxLat)
	}
	if b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("%w: longitude outside [-180, 180]", ErrInvalidBBox)
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("%w: latitude outside [-90, 90]", ErrInvalidBBox)
	}
	return nil
}

// LonSpan returns the east-west extent in degrees.
func (b BoundingBox) LonSpan() float64 { return b.MaxLon - b.MinLon }

// LatSpan returns the north-south extent in degrees.
func (b BoundingBox) LatSpan() float64 { return b.MaxLat - b.MinLat }

// Center returns the midpoint as (lat, lon).
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// CellCenter returns the centre of cell (x, y) in a width x height grid laid over the box.
func (b BoundingBox) CellCenter(x, y, width, height int) (lat, lon float64) {
	lat = b.MaxLat - (float64(y)+0.5)*b.LatSpan()/float64(height)
	lon = b.MinLon + (float64(x)+0.5)*b.LonSpan()/float64(width)
	return lat, lon
}

// String renders the box in the minLon,minLat,maxLon,maxLat form accepted by ParseBoundingBox.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ParseBoundingBox parses "minLon,minLat,maxLon,maxLat" and validates the result.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: expected 4 comma-separated values, got %d", ErrInvalidBBox, len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("%w: parse %q: %w", ErrInvalidBBox, p, err)
		}
		vals[i] = v
	}
	b := BoundingBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}
