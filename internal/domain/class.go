package domain

import "fmt"

// LandClass is the coarse suitability bucket derived from a land cover code.
type LandClass uint8

const (
	LandPoor LandClass = iota
	LandCaution
	LandIdeal
)

func (c LandClass) String() string {
	switch c {
	case LandPoor:
		return "poor"
	case LandCaution:
		return "caution"
	case LandIdeal:
		return "ideal"
	default:
		return fmt.Sprintf("LandClass(%d)", uint8(c))
	}
}

// Category is the final per-cell suitability verdict.
type Category uint8

const (
	CategoryPoor Category = iota
	CategoryCaution
	CategoryIdeal
)

func (c Category) String() string {
	switch c {
	case CategoryPoor:
		return "poor"
	case CategoryCaution:
		return "caution"
	case CategoryIdeal:
		return "ideal"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// WeatherOverlay classifies recent weather conditions for a cell.
type WeatherOverlay uint8

const (
	WeatherNeutral WeatherOverlay = iota
	WeatherDry
	WeatherFavourable
)

func (w WeatherOverlay) String() string {
	switch w {
	case WeatherNeutral:
		return "neutral"
	case WeatherDry:
		return "dry"
	case WeatherFavourable:
		return "favourable"
	default:
		return fmt.Sprintf("WeatherOverlay(%d)", uint8(w))
	}
}

// MarshalText encodes the category by name so JSON arrays stay readable.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name.
func (c *Category) UnmarshalText(b []byte) error {
	switch string(b) {
	case "poor":
		*c = CategoryPoor
	case "caution":
		*c = CategoryCaution
	case "ideal":
		*c = CategoryIdeal
	default:
		return fmt.Errorf("unknown category %q", b)
	}
	return nil
}

// MarshalText encodes the overlay by name.
func (w WeatherOverlay) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText parses an overlay name.
func (w *WeatherOverlay) UnmarshalText(b []byte) error {
	switch string(b) {
	case "neutral":
		*w = WeatherNeutral
	case "dry":
		*w = WeatherDry
	case "favourable":
		*w = WeatherFavourable
	default:
		return fmt.Errorf("unknown weather overlay %q", b)
	}
	return nil
}
