package scoring

import "github.com/couchcryptid/habitat-suitability-service/internal/domain"

const (
	precipMin        = 0.2
	precipIdeal      = 4.2
	precipMax        = 10.0
	precipFavourable = 4.0
	precipDry        = 0.8

	tempMin   = 3.0
	tempIdeal = 12.0
	tempMax   = 19.0
	tempHot   = 22.0

	bonusTempLow  = 8.0
	bonusTempHigh = 16.0
)

// WeatherInput is one cell's base soil score plus its weather sample.
type WeatherInput struct {
	BaseScore     float64
	Precipitation float64 // mm
	Temperature   float64 // °C
}

// WeatherResult is the weather-adjusted score and overlay class.
type WeatherResult struct {
	AdjustedScore float64
	Overlay       domain.WeatherOverlay
}

// ComputeWeatherOverlay blends precipitation and temperature memberships into
// a modifier on the base score and classifies the conditions.
func ComputeWeatherOverlay(in WeatherInput) WeatherResult {
	base := in.BaseScore
	if !isFinite(base) {
		base = 0
	}
	if !isFinite(in.Precipitation) || !isFinite(in.Temperature) {
		return WeatherResult{AdjustedScore: clamp(base, 0, 100), Overlay: domain.WeatherNeutral}
	}

	p, t := in.Precipitation, in.Temperature
	precipScore := triangular(p, precipMin, precipIdeal, precipMax)
	tempScore := triangular(t, tempMin, tempIdeal, tempMax)

	modifier, combined := adjustForExtremes(p, t, precipScore*0.65+tempScore*0.35)
	combined = clamp(combined, 0, 1)

	res := WeatherResult{
		AdjustedScore: clamp(base+(combined-0.5)*26+modifier, 0, 100),
		Overlay:       domain.WeatherNeutral,
	}
	switch {
	case p <= precipDry || combined < 0.32:
		res.Overlay = domain.WeatherDry
	case p >= precipFavourable && combined >= 0.65 && tempScore > 0.45:
		res.Overlay = domain.WeatherFavourable
	}
	return res
}

// triangular is 0 at or beyond lo and hi, rising linearly to 1 at peak.
func triangular(v, lo, peak, hi float64) float64 {
	if !isFinite(v) || hi <= lo || peak <= lo || peak >= hi {
		return 0
	}
	switch {
	case v <= lo || v >= hi:
		return 0
	case v == peak:
		return 1
	case v < peak:
		return (v - lo) / (peak - lo)
	default:
		return (hi - v) / (hi - peak)
	}
}

func adjustForExtremes(p, t, combined float64) (modifier, adjusted float64) {
	adjusted = combined
	if p < precipDry {
		modifier -= clamp((precipDry-p)*8, 0, 12)
		adjusted = min(adjusted, 0.3)
	}
	if p > precipMax {
		modifier -= clamp((p-precipMax)*2, 0, 6)
	}
	if t < tempMin {
		modifier -= clamp((tempMin-t)*1.8, 0, 10)
		adjusted = min(adjusted, 0.35)
	}
	if t > tempHot {
		modifier -= clamp((t-tempHot)*1.2, 0, 10)
		adjusted = min(adjusted, 0.4)
	}
	if p > precipFavourable && t >= bonusTempLow && t <= bonusTempHigh {
		modifier += 6
		adjusted = max(adjusted, 0.7)
	}
	return modifier, adjusted
}
