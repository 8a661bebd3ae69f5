package scoring

import (
	"testing"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDeriveLandCoverClasses_InitialClasses(t *testing.T) {
	codes := []uint8{20, 30, 100, 40, 50, 60, 70, 80, 90, 95, 10, 255}
	classes := DeriveLandCoverClasses(codes, len(codes), 1)

	want := []domain.LandClass{
		domain.LandIdeal, domain.LandIdeal, domain.LandIdeal,
		domain.LandPoor, domain.LandPoor, domain.LandPoor, domain.LandPoor, domain.LandPoor,
		domain.LandCaution, domain.LandCaution, domain.LandCaution, domain.LandCaution,
	}
	// Woodland at index 10 neighbours 95 and 255 only, so it stays Caution.
	assert.Equal(t, want, classes)
}

func TestDeriveLandCoverClasses_PoorIgnoresNeighbours(t *testing.T) {
	codes := []uint8{
		20, 20, 20,
		20, 40, 20,
		20, 20, 20,
	}
	classes := DeriveLandCoverClasses(codes, 3, 3)
	assert.Equal(t, domain.LandPoor, classes[4])
}

func TestDeriveLandCoverClasses_IsolatedWoodlandStaysCaution(t *testing.T) {
	codes := []uint8{
		40, 50, 60,
		70, 10, 80,
		40, 40, 40,
	}
	classes := DeriveLandCoverClasses(codes, 3, 3)
	assert.Equal(t, domain.LandCaution, classes[4])
}

func TestDeriveLandCoverClasses_WoodlandPromotedByDiagonal(t *testing.T) {
	codes := []uint8{
		30, 40, 40,
		40, 10, 40,
		40, 40, 40,
	}
	classes := DeriveLandCoverClasses(codes, 3, 3)
	assert.Equal(t, domain.LandIdeal, classes[4])
}

func TestDeriveLandCoverClasses_PromotionDoesNotChain(t *testing.T) {
	// Only the woodland next to the grassland is promoted; the next one along
	// sees a woodland neighbour that was Caution in the initial pass.
	codes := []uint8{30, 10, 10, 40}
	classes := DeriveLandCoverClasses(codes, 4, 1)

	assert.Equal(t, []domain.LandClass{
		domain.LandIdeal, domain.LandIdeal, domain.LandCaution, domain.LandPoor,
	}, classes)
}

func TestDeriveLandCoverClasses_ShortCodesArePoor(t *testing.T) {
	classes := DeriveLandCoverClasses([]uint8{20}, 2, 1)
	assert.Equal(t, []domain.LandClass{domain.LandIdeal, domain.LandPoor}, classes)
	assert.Nil(t, DeriveLandCoverClasses(nil, 0, 0))
}
