// Package synthetic generates deterministic stand-in grids: procedural
// weather from scalar summaries, and soil and land-cover fallbacks used when
// live data is unavailable or mock mode is on.
package synthetic

import (
	"math"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
)

const (
	DefaultVariation = 0.35
	MinVariation     = 0.1
)

// WeatherOptions tunes Weather. A zero VariationScale means DefaultVariation.
type WeatherOptions struct {
	Seed           float64
	VariationScale float64
}

// Weather spreads a precipitation (mm) and temperature (°C) summary across a
// width x height grid over bbox. Output depends only on its inputs.
func Weather(bbox domain.BoundingBox, width, height int, basePrecip, baseTemp float64, opts WeatherOptions) domain.WeatherGrid {
	grid := domain.NewWeatherGrid(width, height)
	if width <= 0 || height <= 0 {
		return grid
	}
	precip := grid.Precipitation()
	temp := grid.Temperature()

	safePrecip := 0.0
	if isFinite(basePrecip) {
		safePrecip = math.Max(0, basePrecip)
	}
	safeTemp := 10.0
	if isFinite(baseTemp) {
		safeTemp = baseTemp
	}

	latSpan := nonZeroSpan(bbox.LatSpan())
	lonSpan := nonZeroSpan(bbox.LonSpan())

	variation := DefaultVariation
	if opts.VariationScale != 0 {
		variation = opts.VariationScale
	}
	variation = math.Max(MinVariation, variation)
	phi := (math.Sin(opts.Seed) + 1) * math.Pi

	_, centreLon := bbox.Center()

	for y := range height {
		lat := bbox.MaxLat - latSpan*unit(y, height)
		latNorm := clamp((lat-bbox.MinLat)/latSpan, 0, 1)

		for x := range width {
			lon := bbox.MinLon + lonSpan*unit(x, width)
			lonNorm := clamp((lon-bbox.MinLon)/lonSpan, 0, 1)
			idx := y*width + x

			waveA := math.Sin((lonNorm*2+latNorm)*math.Pi + phi)
			waveB := math.Cos((latNorm*1.5-lonNorm)*math.Pi*1.2 + phi*0.5)
			waveC := math.Sin((lonNorm-latNorm)*math.Pi*2 + phi*0.25)
			composite := (waveA*0.45 + waveB*0.35 + waveC*0.2) * variation

			latBias := (0.5 - latNorm) * 0.3
			lonBias := (0.5 - lonNorm) * 0.18

			p := safePrecip*(1+composite) + safePrecip*(latBias*0.4+lonBias*0.25)
			precip[idx] = float32(math.Max(0, p))

			continentality := math.Cos(math.Abs(lon-centreLon)/math.Max(1, math.Abs(lonSpan))*math.Pi) * 2
			temp[idx] = float32(safeTemp + composite*5 - latBias*10 + continentality)
		}
	}
	return grid
}

// MockWeather derives base conditions from the bbox centre and synthesises
// a grid from them.
func MockWeather(bbox domain.BoundingBox, width, height int) domain.WeatherGrid {
	centreLat, centreLon := bbox.Center()

	basePrecip := 3.2 + math.Sin((centreLat+48)*0.18)*1.6 - math.Cos((centreLon+2)*0.16)*0.9
	baseTemp := 10.5 - math.Sin((centreLat-50)*0.2)*3 + math.Cos((centreLon+1)*0.15)*1.4
	seed := math.Mod(roundHalfUp((centreLat+centreLon)*100), 360)

	return Weather(bbox, width, height, math.Max(0.4, basePrecip), baseTemp, WeatherOptions{
		Seed:           seed,
		VariationScale: 0.45,
	})
}

// nonZeroSpan replaces degenerate spans with 1 so positions never divide by zero.
func nonZeroSpan(s float64) float64 {
	if math.Abs(s) < 1e-6 {
		return 1
	}
	return s
}

// unit maps index i of n onto [0, 1]; a single cell sits at the midpoint.
func unit(i, n int) float64 {
	if n == 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

// roundHalfUp rounds half-way values towards positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
