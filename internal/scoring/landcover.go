package scoring

import "github.com/couchcryptid/habitat-suitability-service/internal/domain"

// WoodlandCode is the tree cover code eligible for edge promotion.
const WoodlandCode uint8 = 10

// classifyCode maps a raw land cover code to its initial land class.
func classifyCode(code uint8) domain.LandClass {
	switch code {
	case 20, 30, 100:
		return domain.LandIdeal
	case 40, 50, 60, 70, 80:
		return domain.LandPoor
	case WoodlandCode, 90, 95:
		return domain.LandCaution
	default:
		return domain.LandCaution
	}
}

// DeriveLandCoverClasses classifies every code, then promotes woodland cells
// that touch an Ideal cell (8-neighbourhood) to Ideal. Promotion reads the
// initial classification only, so it never chains through woodland.
func DeriveLandCoverClasses(codes []uint8, width, height int) []domain.LandClass {
	n := width * height
	if n <= 0 {
		return nil
	}
	if len(codes) < n {
		n = len(codes)
	}

	initial := make([]domain.LandClass, width*height)
	for i := range n {
		initial[i] = classifyCode(codes[i])
	}
	for i := n; i < len(initial); i++ {
		initial[i] = domain.LandPoor
	}

	classes := make([]domain.LandClass, len(initial))
	copy(classes, initial)

	for y := range height {
		for x := range width {
			idx := y*width + x
			if idx >= n || codes[idx] != WoodlandCode {
				continue
			}
			if hasIdealNeighbour(initial, width, height, x, y) {
				classes[idx] = domain.LandIdeal
			}
		}
	}
	return classes
}

func hasIdealNeighbour(classes []domain.LandClass, width, height, x, y int) bool {
	for ny := max(0, y-1); ny <= min(height-1, y+1); ny++ {
		for nx := max(0, x-1); nx <= min(width-1, x+1); nx++ {
			if nx == x && ny == y {
				continue
			}
			if classes[ny*width+nx] == domain.LandIdeal {
				return true
			}
		}
	}
	return false
}
