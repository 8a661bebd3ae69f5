package scoring

import (
	"math"
	"testing"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapScoreToCategory(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		land  domain.LandClass
		want  domain.Category
	}{
		{"nan always poor", math.NaN(), domain.LandIdeal, domain.CategoryPoor},
		{"inf always poor", math.Inf(1), domain.LandIdeal, domain.CategoryPoor},
		{"poor land at 100", 100, domain.LandPoor, domain.CategoryPoor},
		{"ideal land at 75", 75, domain.LandIdeal, domain.CategoryIdeal},
		{"caution land at 75 is capped", 75, domain.LandCaution, domain.CategoryCaution},
		{"caution land at 95 is capped", 95, domain.LandCaution, domain.CategoryCaution},
		{"ideal land at 70", 70, domain.LandIdeal, domain.CategoryIdeal},
		{"ideal land at 45", 45, domain.LandIdeal, domain.CategoryCaution},
		{"ideal land at 44.9", 44.9, domain.LandIdeal, domain.CategoryPoor},
		{"caution land at 54 drops to poor", 54, domain.LandCaution, domain.CategoryPoor},
		{"caution land at 55", 55, domain.LandCaution, domain.CategoryCaution},
		{"unknown land class", 90, domain.LandClass(7), domain.CategoryPoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapScoreToCategory(tt.score, tt.land))
		})
	}
}

func TestRunningAverage(t *testing.T) {
	var avg RunningAverage
	assert.Equal(t, 0.0, avg.Average())

	for _, v := range []float64{10, math.NaN(), 20, math.Inf(1), 30} {
		avg.Add(v)
	}
	assert.Equal(t, 3, avg.Count())
	assert.InDelta(t, 20.0, avg.Average(), 1e-12)
}
