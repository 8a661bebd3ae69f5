package synthetic

import (
	"math"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
)

// Land-cover codes emitted by MockLandCover.
const (
	codeTreeCover = 10
	codeShrubland = 20
	codeGrassland = 30
	codeCropland  = 40
	codeMoss      = 100
)

// seededRandom is a deterministic hash of a point into [0, 1).
func seededRandom(x, y float64) float64 {
	s := math.Sin(x*12.9898+y*78.233) * 43758.5453
	return s - math.Floor(s)
}

// cellPoint returns the sample point of cell (x, y); row 0 is north and a
// single row or column sits at the midpoint.
func cellPoint(bbox domain.BoundingBox, x, y, width, height int) (lat, lon float64) {
	lat = bbox.MaxLat - bbox.LatSpan()*unit(y, height)
	lon = bbox.MinLon + bbox.LonSpan()*unit(x, width)
	return lat, lon
}

// MockSoil returns plausible loamy soil properties varying smoothly with
// position.
func MockSoil(bbox domain.BoundingBox, width, height int) domain.SoilGrid {
	grid := domain.NewSoilGrid(width, height)
	ph := grid.Channel(domain.ChannelPH)
	orgc := grid.Channel(domain.ChannelOrganicCarbon)
	bdod := grid.Channel(domain.ChannelBulkDensity)
	sand := grid.Channel(domain.ChannelSand)
	clay := grid.Channel(domain.ChannelClay)
	silt := grid.Channel(domain.ChannelSilt)

	for y := range height {
		for x := range width {
			idx := y*width + x
			lat, lon := cellPoint(bbox, x, y, width, height)
			noise := seededRandom(lat, lon)

			ph[idx] = float32(5.2 + noise*2.0)
			orgc[idx] = float32(30 + noise*70)
			bdod[idx] = float32(1100 + noise*300)
			sand[idx] = float32(400 + noise*300)
			clay[idx] = float32(200 + noise*150)
			silt[idx] = float32(400 - noise*150)
		}
	}
	return grid
}

// MockLandCover paints coarse regional land-cover zones with some edge
// structure. Output depends only on its inputs.
func MockLandCover(bbox domain.BoundingBox, width, height int) domain.LandCoverGrid {
	grid := domain.NewLandCoverGrid(width, height)
	codes := grid.Codes()

	for y := range height {
		for x := range width {
			lat, lon := cellPoint(bbox, x, y, width, height)
			code := mockZone(lat, lon)
			switch code {
			case codeTreeCover:
				parity := (int(math.Floor(lat*10)) + int(math.Floor(lon*10))) % 2
				if parity == 0 {
					code = codeShrubland
				}
			case codeCropland:
				if seededRandom(lat, lon) > 0.8 {
					code = codeGrassland
				}
			}
			codes[y*width+x] = code
		}
	}
	return grid
}

func mockZone(lat, lon float64) uint8 {
	switch {
	case lat > 55.5:
		return codeMoss
	case lon < -4 && lat < 54:
		return codeShrubland
	case lat > 51 && lat < 55 && lon > -3 && lon < 1:
		return codeGrassland
	case (lat > 53 && lon > -2) || lat < 51:
		return codeCropland
	default:
		return codeTreeCover
	}
}
