package pipeline

import (
	"fmt"
	"math"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/scoring"
)

// Config holds per-request compute switches.
type Config struct {
	IncludeWeather bool
}

// Request is one unit of work for the compute worker. The grids belong to
// the request; callers must not keep references to them after submitting.
type Request struct {
	RequestID uint64
	BBox      domain.BoundingBox
	Soil      domain.SoilGrid
	LandCover domain.LandCoverGrid
	Weather   *domain.WeatherGrid
	Config    Config
	// Fallback records layers that were replaced with synthetic data.
	Fallback domain.LayerFallback
}

// Validate checks that every channel of every layer holds width*height
// values. Missing channels are allowed and score as zero.
func (r Request) Validate() error {
	if err := r.Soil.RasterGrid.Validate(); err != nil {
		return fmt.Errorf("soil: %w", err)
	}
	if err := r.LandCover.RasterGrid.Validate(); err != nil {
		return fmt.Errorf("landcover: %w", err)
	}
	if r.Weather != nil {
		if err := r.Weather.RasterGrid.Validate(); err != nil {
			return fmt.Errorf("weather: %w", err)
		}
	}
	return nil
}

// Compute scores every cell of a request. Grids are clipped to their common
// width and height; the weather grid only takes part when weather is
// included and present.
func Compute(req Request) domain.SuitabilityResult {
	var weather *domain.WeatherGrid
	if req.Config.IncludeWeather && req.Weather != nil &&
		len(req.Weather.Precipitation()) > 0 && len(req.Weather.Temperature()) > 0 {
		weather = req.Weather
	}

	width := min(req.Soil.Width, req.LandCover.Width)
	height := min(req.Soil.Height, req.LandCover.Height)
	if weather != nil {
		width = min(width, weather.Width)
		height = min(height, weather.Height)
	}
	width, height = max(width, 0), max(height, 0)

	res := domain.NewSuitabilityResult(req.RequestID, req.BBox, width, height)
	res.WeatherApplied = weather != nil
	res.MarkFallback(req.Fallback)

	codes := clipCodes(req.LandCover, width, height)
	classes := scoring.DeriveLandCoverClasses(codes, width, height)

	var avg scoring.RunningAverage
	for y := range height {
		for x := range width {
			idx := y*width + x
			soilIdx := y*req.Soil.Width + x

			breakdown := scoring.ComputeSoilScore(scoring.SoilInputs{
				PH:   sample(req.Soil.Channel(domain.ChannelPH), soilIdx),
				OrgC: sample(req.Soil.Channel(domain.ChannelOrganicCarbon), soilIdx),
				BDOD: sample(req.Soil.Channel(domain.ChannelBulkDensity), soilIdx),
				Sand: sample(req.Soil.Channel(domain.ChannelSand), soilIdx),
				Clay: sample(req.Soil.Channel(domain.ChannelClay), soilIdx),
				Silt: sample(req.Soil.Channel(domain.ChannelSilt), soilIdx),
			})

			score := breakdown.Overall
			overlay := domain.WeatherNeutral
			if weather != nil {
				wIdx := y*weather.Width + x
				wr := scoring.ComputeWeatherOverlay(scoring.WeatherInput{
					BaseScore:     breakdown.Overall,
					Precipitation: sample(weather.Precipitation(), wIdx),
					Temperature:   sample(weather.Temperature(), wIdx),
				})
				score, overlay = wr.AdjustedScore, wr.Overlay
			}

			category := scoring.MapScoreToCategory(score, classes[idx])
			res.Scores[idx] = float32(score)
			res.Categories[idx] = category
			res.WeatherMask[idx] = overlay
			if codes[idx] == scoring.WoodlandCode {
				res.WoodlandMask[idx] = 1
			}
			res.Counts.Add(category)
			avg.Add(score)
		}
	}

	res.SampleCount = avg.Count()
	res.AverageScore = avg.Average()
	return res
}

// clipCodes copies the top-left width x height window of the land-cover
// codes. Missing codes read as 0.
func clipCodes(g domain.LandCoverGrid, width, height int) []uint8 {
	src := g.Codes()
	out := make([]uint8, width*height)
	for y := range height {
		for x := range width {
			if i := y*g.Width + x; i < len(src) {
				out[y*width+x] = src[i]
			}
		}
	}
	return out
}

// sample reads values[i], returning NaN when i is out of range.
func sample(values []float32, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return float64(values[i])
}
