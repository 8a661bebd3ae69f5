// Package domain models the geospatial grids and suitability results that flow
// through the scoring pipeline.
//
// # Coordinates
//
// All bounding boxes are geographic WGS-84 degrees in {minLon, minLat, maxLon,
// maxLat} order. Grids are row-major with row 0 at the northern edge, so cell
// (x, y) has its centre at:
//
//	lon = minLon + (x + 0.5) * (maxLon - minLon) / width
//	lat = maxLat - (y + 0.5) * (maxLat - minLat) / height
//
// # Soil channels
//
// Soil grids carry six channels after unit conversion:
//
//	orcdrc  organic carbon, g/kg (10 g/kg = 1 %)
//	phh2o   pH in water, unitless (sources store pH x10 and are divided by 10)
//	bdod    bulk density, kg/m³ (1000 kg/m³ = 1 g/cm³)
//	sand    g/kg (sources store percent, multiplied by 10)
//	clay    g/kg (same)
//	silt    g/kg (same)
//
// Missing measurements are NaN. Scoring treats NaN components as absent.
//
// # Land cover codes
//
// Land cover codes follow the ESA WorldCover numbering. The values used by the
// classifier are:
//
//	10 tree cover (woodland)    20 shrubland     30 grassland
//	40 cropland                 50 built-up      60 bare/sparse
//	70 snow and ice             80 water         90 herbaceous wetland
//	95 mangroves               100 moss and lichen
//
// When land cover is derived from a USDA soil taxonomy raster, taxonomy codes
// are first mapped onto this numbering.
//
// # Request ordering
//
// Every result carries the request id it was computed for. Ids are assigned
// in strictly increasing order, and consumers drop any result older than the
// newest one they have already applied.
package domain
