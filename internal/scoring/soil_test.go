package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePH(t *testing.T) {
	assert.InDelta(t, 100.0, ScorePH(6.0), 1e-9)
	assert.Equal(t, 0.0, ScorePH(math.NaN()))
	assert.Equal(t, 0.0, ScorePH(math.Inf(1)))

	// Symmetric and decreasing away from 6.0.
	prev := ScorePH(6.0)
	for d := 0.1; d <= 3.0; d += 0.1 {
		lo, hi := ScorePH(6.0-d), ScorePH(6.0+d)
		assert.InDelta(t, lo, hi, 1e-9, "asymmetric at delta %.1f", d)
		assert.Less(t, hi, prev, "not decreasing at delta %.1f", d)
		prev = hi
	}
}

func TestScoreOrganicCarbon(t *testing.T) {
	tests := []struct {
		name   string
		orcdrc float64
		want   float64
	}{
		{"very low", 3, 5},
		{"ramp midpoint", 17.5, 60},
		{"plateau", 40, 100},
		{"declining", 80, 75},
		{"high", 125, 25},
		{"floor", 149, 20},
		{"extreme", 200, 10},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreOrganicCarbon(tt.orcdrc), 1e-9)
		})
	}
}

func TestScoreTexture(t *testing.T) {
	t.Run("balanced loam", func(t *testing.T) {
		assert.Greater(t, ScoreTexture(450, 250, 300), 75.0)
	})
	t.Run("sand dominated", func(t *testing.T) {
		assert.Less(t, ScoreTexture(900, 50, 50), 35.0)
	})
	t.Run("heavy clay", func(t *testing.T) {
		assert.Less(t, ScoreTexture(150, 600, 250), 35.0)
	})
	t.Run("invalid components", func(t *testing.T) {
		for _, in := range [][3]float64{
			{-1, 250, 300},
			{450, math.NaN(), 300},
			{450, 250, math.Inf(-1)},
			{0, 0, 0},
		} {
			assert.Equal(t, 0.0, ScoreTexture(in[0], in[1], in[2]), "input %v", in)
		}
	})
	t.Run("scale invariant", func(t *testing.T) {
		assert.InDelta(t, ScoreTexture(450, 250, 300), ScoreTexture(45, 25, 30), 1e-9)
	})
}

func TestScoreMoisture(t *testing.T) {
	tests := []struct {
		bdod float64
		want float64
	}{
		{700, 60},
		{925, 90},
		{1200, 100},
		{1475, 85},
		{1700, 50},
		{1900, 20},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, ScoreMoisture(tt.bdod), 1e-9, "bdod %v", tt.bdod)
	}
}

func TestComputeSoilScore(t *testing.T) {
	ideal := ComputeSoilScore(SoilInputs{PH: 6, OrgC: 40, BDOD: 1200, Sand: 450, Clay: 250, Silt: 300})
	assert.InDelta(t, 100.0, ideal.Overall, 1e-9)
	assert.InDelta(t, 100.0, ideal.PH, 1e-9)

	t.Run("missing components are excluded", func(t *testing.T) {
		nan := math.NaN()
		b := ComputeSoilScore(SoilInputs{PH: 6, OrgC: nan, BDOD: nan, Sand: nan, Clay: nan, Silt: nan})
		// NaN inputs score 0, which is finite, so those components still count.
		assert.InDelta(t, 32.0, b.Overall, 1e-9)
	})

	t.Run("all missing", func(t *testing.T) {
		nan := math.NaN()
		b := ComputeSoilScore(SoilInputs{PH: nan, OrgC: nan, BDOD: nan, Sand: nan, Clay: nan, Silt: nan})
		assert.Equal(t, 0.0, b.Overall)
	})

	t.Run("bounded", func(t *testing.T) {
		b := ComputeSoilScore(SoilInputs{PH: 3, OrgC: 1, BDOD: 2100, Sand: 990, Clay: 5, Silt: 5})
		assert.GreaterOrEqual(t, b.Overall, 0.0)
		assert.LessOrEqual(t, b.Overall, 100.0)
	})
}
