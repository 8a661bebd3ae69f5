package scoring

import "github.com/couchcryptid/habitat-suitability-service/internal/domain"

const (
	idealThreshold   = 70
	cautionThreshold = 45
	cautionPenalty   = 10
)

// MapScoreToCategory converts a final score and land class into a category.
// Poor land always yields Poor; Caution land loses 10 points and can never
// reach Ideal.
func MapScoreToCategory(score float64, land domain.LandClass) domain.Category {
	if !isFinite(score) {
		return domain.CategoryPoor
	}

	adjusted := score
	switch land {
	case domain.LandPoor:
		return domain.CategoryPoor
	case domain.LandCaution:
		adjusted -= cautionPenalty
	case domain.LandIdeal:
	default:
		return domain.CategoryPoor
	}

	switch {
	case adjusted >= idealThreshold:
		if land == domain.LandCaution {
			return domain.CategoryCaution
		}
		return domain.CategoryIdeal
	case adjusted >= cautionThreshold:
		return domain.CategoryCaution
	default:
		return domain.CategoryPoor
	}
}
