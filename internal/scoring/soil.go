// Package scoring holds the pure functions that turn soil, land cover, and
// weather samples into a 0-100 suitability score and a category. None of them
// return errors or panic: non-finite inputs degrade to a zero score.
package scoring

import "math"

// Soil component weights.
const (
	weightPH       = 0.32
	weightOrganic  = 0.22
	weightTexture  = 0.28
	weightMoisture = 0.18
)

// SoilInputs is one cell's converted soil sample.
type SoilInputs struct {
	PH   float64 // pH
	OrgC float64 // organic carbon, g/kg
	BDOD float64 // bulk density, kg/m³
	Sand float64 // g/kg
	Clay float64 // g/kg
	Silt float64 // g/kg
}

// SoilBreakdown holds the sub-scores and the weighted overall soil score.
type SoilBreakdown struct {
	PH       float64 `json:"ph"`
	Organic  float64 `json:"organic"`
	Texture  float64 `json:"texture"`
	Moisture float64 `json:"moisture"`
	Overall  float64 `json:"overall"`
}

// ScorePH is a Gaussian centred on pH 6.0 (sigma 0.6) scaled to 100.
func ScorePH(ph float64) float64 {
	if !isFinite(ph) {
		return 0
	}
	const mu, sigma = 6.0, 0.6
	z := (ph - mu) / sigma
	return clamp(math.Exp(-0.5*z*z)*100, 0, 100)
}

// ScoreOrganicCarbon scores organic carbon given in g/kg.
func ScoreOrganicCarbon(orcdrc float64) float64 {
	if !isFinite(orcdrc) {
		return 0
	}
	pct := orcdrc / 10
	switch {
	case pct <= 0.5:
		return 5
	case pct < 3:
		return math.Min(100, (pct-0.5)/2.5*80+20)
	case pct <= 6:
		return 100
	case pct <= 10:
		return 100 - (pct-6)/4*50
	case pct <= 15:
		return math.Max(20, 50-(pct-10)/5*50)
	default:
		return 10
	}
}

// ScoreTexture penalises distance from a 45/25/30 sand/clay/silt loam.
// Inputs are g/kg; any negative or non-finite component scores 0.
func ScoreTexture(sand, clay, silt float64) float64 {
	for _, v := range []float64{sand, clay, silt} {
		if !isFinite(v) || v < 0 {
			return 0
		}
	}
	sandPct, clayPct, siltPct := sand/10, clay/10, silt/10
	total := sandPct + clayPct + siltPct
	if total <= 0 {
		return 0
	}
	sandR := sandPct / total * 100
	clayR := clayPct / total * 100
	siltR := siltPct / total * 100

	score := 100.0
	score -= math.Max(0, math.Abs(sandR-45)-10) * 2.2
	score -= math.Max(0, math.Abs(clayR-25)-6) * 2.8
	score -= math.Max(0, math.Abs(siltR-30)-10) * 1.5
	if sandR > 70 {
		score -= (sandR - 70) * 2.8
	}
	if clayR > 45 {
		score -= (clayR - 45) * 3.0
	}
	return clamp(score, 0, 100)
}

// ScoreMoisture uses bulk density (kg/m³) as a drainage and moisture proxy.
func ScoreMoisture(bdod float64) float64 {
	if !isFinite(bdod) {
		return 0
	}
	d := bdod / 1000
	switch {
	case d <= 0.8:
		return 60
	case d < 1.05:
		return 80 + (d-0.8)/0.25*20
	case d <= 1.35:
		return 100
	case d <= 1.6:
		return 100 - (d-1.35)/0.25*30
	case d <= 1.8:
		return 70 - (d-1.6)/0.2*40
	default:
		return 20
	}
}

// ComputeSoilScore combines the four sub-scores. Non-finite sub-scores are
// left out of both numerator and denominator; if none remain the result is 0.
func ComputeSoilScore(in SoilInputs) SoilBreakdown {
	b := SoilBreakdown{
		PH:       ScorePH(in.PH),
		Organic:  ScoreOrganicCarbon(in.OrgC),
		Texture:  ScoreTexture(in.Sand, in.Clay, in.Silt),
		Moisture: ScoreMoisture(in.BDOD),
	}

	var total, weights float64
	for _, c := range [...]struct{ score, weight float64 }{
		{b.PH, weightPH},
		{b.Organic, weightOrganic},
		{b.Texture, weightTexture},
		{b.Moisture, weightMoisture},
	} {
		if !isFinite(c.score) {
			continue
		}
		total += c.score * c.weight
		weights += c.weight
	}
	if weights > 0 {
		b.Overall = clamp(total/weights, 0, 100)
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
