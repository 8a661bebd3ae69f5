package domain

import "time"

// CategoryCounts tallies cells per category.
type CategoryCounts struct {
	Ideal   int `json:"ideal"`
	Caution int `json:"caution"`
	Poor    int `json:"poor"`
}

// Add increments the counter for c.
func (c *CategoryCounts) Add(cat Category) {
	switch cat {
	case CategoryIdeal:
		c.Ideal++
	case CategoryCaution:
		c.Caution++
	case CategoryPoor:
		c.Poor++
	}
}

// LayerFallback records which input layers were replaced by synthetic data.
type LayerFallback struct {
	Soil      bool `json:"soil"`
	LandCover bool `json:"land_cover"`
	Weather   bool `json:"weather"`
}

// Any reports whether at least one layer fell back.
func (f LayerFallback) Any() bool {
	return f.Soil || f.LandCover || f.Weather
}

// SuitabilityResult is the scored grid for one request.
type SuitabilityResult struct {
	RequestID      uint64           `json:"request_id"`
	BBox           BoundingBox      `json:"bbox"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	Scores         []float32        `json:"scores"`
	Categories     []Category       `json:"categories"`
	WoodlandMask   []uint8          `json:"woodland_mask"`
	WeatherMask    []WeatherOverlay `json:"weather_mask"`
	SampleCount    int              `json:"sample_count"`
	AverageScore   float64          `json:"average_score"`
	Counts         CategoryCounts   `json:"counts"`
	WeatherApplied bool             `json:"weather_applied"`
	Fallback       LayerFallback    `json:"fallback"`
	Degraded       bool             `json:"degraded"`
	ComputedAt     time.Time        `json:"computed_at"`
}

// NewSuitabilityResult allocates per-cell arrays for a width x height result.
func NewSuitabilityResult(requestID uint64, bbox BoundingBox, width, height int) SuitabilityResult {
	n := width * height
	return SuitabilityResult{
		RequestID:    requestID,
		BBox:         bbox,
		Width:        width,
		Height:       height,
		Scores:       make([]float32, n),
		Categories:   make([]Category, n),
		WoodlandMask: make([]uint8, n),
		WeatherMask:  make([]WeatherOverlay, n),
		ComputedAt:   clock.Now().UTC(),
	}
}

// MarkFallback records the fallback layers and derives Degraded.
func (r *SuitabilityResult) MarkFallback(f LayerFallback) {
	r.Fallback = f
	r.Degraded = f.Any()
}

// Summary is the compact, grid-free view of a result used for publishing.
type Summary struct {
	RequestID      uint64         `json:"request_id"`
	BBox           BoundingBox    `json:"bbox"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	SampleCount    int            `json:"sample_count"`
	AverageScore   float64        `json:"average_score"`
	Counts         CategoryCounts `json:"counts"`
	WeatherApplied bool           `json:"weather_applied"`
	Fallback       LayerFallback  `json:"fallback"`
	Degraded       bool           `json:"degraded"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// Summary drops the per-cell arrays.
func (r SuitabilityResult) Summary() Summary {
	return Summary{
		RequestID:      r.RequestID,
		BBox:           r.BBox,
		Width:          r.Width,
		Height:         r.Height,
		SampleCount:    r.SampleCount,
		AverageScore:   r.AverageScore,
		Counts:         r.Counts,
		WeatherApplied: r.WeatherApplied,
		Fallback:       r.Fallback,
		Degraded:       r.Degraded,
		ComputedAt:     r.ComputedAt,
	}
}
