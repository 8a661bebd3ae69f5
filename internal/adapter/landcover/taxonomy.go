package landcover

import (
	"math"
	"strings"
)

// TaxonomyFilename is the bundled USDA soil-taxonomy raster read from a tile directory.
const TaxonomyFilename = "TAXOUSDA_T36059.tif"

// taxonomyLabels is the SoilGrids TAXOUSDA legend.
var taxonomyLabels = map[int]string{
	0: "Ocean", 1: "Shifting Sand", 2: "Rock", 3: "Ice",
	5: "Histels", 6: "Turbels", 7: "Orthels",
	10: "Folists", 11: "Fibrists", 12: "Hemists", 13: "Saprists",
	15: "Aquods", 16: "Cryods", 17: "Humods", 18: "Orthods", 19: "Gelods",
	20: "Aquands", 21: "Cryands", 22: "Torrands", 23: "Xerands", 24: "Vitrands",
	25: "Ustands", 26: "Udands", 27: "Gelands",
	30: "Aquox", 31: "Torrox", 32: "Ustox", 33: "Perox", 34: "Udox",
	40: "Aquerts", 41: "Cryerts", 42: "Xererts", 43: "Torrerts", 44: "Usterts", 45: "Uderts",
	50: "Cryids", 51: "Salids", 52: "Durids", 53: "Gypsids", 54: "Argids", 55: "Calcids", 56: "Cambids",
	60: "Aquults", 61: "Humults", 62: "Udults", 63: "Ustults", 64: "Xerults",
	69: "Borolls", 70: "Albolls", 71: "Aquolls", 72: "Rendolls", 73: "Xerolls",
	74: "Cryolls", 75: "Ustolls", 76: "Udolls", 77: "Gelolls",
	80: "Aqualfs", 81: "Cryalfs", 82: "Ustalfs", 83: "Xeralfs", 84: "Udalfs",
	85: "Udepts", 86: "Gelepts", 89: "Ochrepts",
	90: "Aquepts", 91: "Anthrepts", 92: "Cryepts", 93: "Ustepts", 94: "Xerepts",
	95: "Aquents", 96: "Arents", 97: "Psamments", 98: "Fluvents", 99: "Orthents",
}

// Land-cover codes produced by MapTaxonomy.
const (
	codeShrubland = 20
	codeGrassland = 30
	codeCropland  = 40
	codeBare      = 60
	codeSnowIce   = 70
	codeWater     = 80
	codeWetland   = 90
	codeMangrove  = 95
)

// MapTaxonomy converts a TAXOUSDA raster value to a land-cover code.
// Nodata maps to bare ground and unknown classes to cropland.
func MapTaxonomy(code float64) uint8 {
	if math.IsNaN(code) || math.IsInf(code, 0) || code == 255 {
		return codeBare
	}
	if code != math.Trunc(code) {
		return codeCropland
	}
	label, ok := taxonomyLabels[int(code)]
	if !ok {
		return codeCropland
	}

	l := strings.ToLower(label)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(l, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("ocean"):
		return codeWater
	case has("ice"):
		return codeSnowIce
	case has("rock", "sand"):
		return codeBare
	case has("aqu", "hist", "sapr"):
		return codeMangrove
	case has("cry", "gel"):
		return codeWetland
	case has("psam", "ust", "xer"):
		return codeGrassland
	case has("hum", "and", "orthod"):
		return codeShrubland
	case strings.HasSuffix(l, "ids"):
		return codeBare
	default:
		return codeCropland
	}
}

// representativeTaxonomy is one TAXOUSDA class per land-cover code, used to
// write taxonomy rasters from land-cover grids.
var representativeTaxonomy = map[uint8]uint8{
	codeShrubland: 17, // Humods
	codeGrassland: 75, // Ustolls
	codeCropland:  84, // Udalfs
	codeBare:      2,  // Rock
	codeSnowIce:   3,  // Ice
	codeWater:     0,  // Ocean
	codeWetland:   16, // Cryods
	codeMangrove:  15, // Aquods
}

// TaxonomyFor returns a TAXOUSDA class that MapTaxonomy maps back to code.
// Codes with no taxonomy equivalent, such as tree cover, report false.
func TaxonomyFor(code uint8) (uint8, bool) {
	t, ok := representativeTaxonomy[code]
	return t, ok
}
