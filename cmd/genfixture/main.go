// Command genfixture writes synthetic GeoTIFF tiles for offline runs. The
// soil tiles hold one SoilGrids property each in the units the service
// reads from SoilGrids, and the taxonomy tile holds TAXOUSDA classes.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -soil-dir data/soil \
//	  -landcover-dir data/landcover \
//	  -extent=-9.6,49.0,3.2,60.0 -width 480 -height 480
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/landcover"
	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/soilgrids"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
	"github.com/couchcryptid/habitat-suitability-service/internal/synthetic"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	soilDir := flag.String("soil-dir", "", "output directory for soil property tiles")
	landDir := flag.String("landcover-dir", "", "output directory for the taxonomy tile")
	extentFlag := flag.String("extent", "-9.6,49.0,3.2,60.0", "tile extent as minLon,minLat,maxLon,maxLat")
	width := flag.Int("width", 480, "tile width in pixels")
	height := flag.Int("height", 480, "tile height in pixels")
	deflate := flag.Bool("deflate", true, "deflate-compress tiles")
	flag.Parse()

	if *soilDir == "" && *landDir == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -soil-dir or -landcover-dir is required")
	}
	extent, err := domain.ParseBoundingBox(*extentFlag)
	if err != nil {
		return err
	}
	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("invalid tile size %dx%d", *width, *height)
	}

	opts := geotiff.EncodeOptions{}
	if *deflate {
		opts.Compression = geotiff.CompressionDeflate
	}

	if *soilDir != "" {
		if err := writeSoil(*soilDir, extent, *width, *height, opts); err != nil {
			return err
		}
	}
	if *landDir != "" {
		opts.SampleFormat, opts.BitsPerSample = geotiff.SampleUint, 8
		if err := writeTaxonomy(*landDir, extent, *width, *height, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeSoil(dir string, extent domain.BoundingBox, width, height int, opts geotiff.EncodeOptions) error {
	grid := synthetic.MockSoil(extent, width, height)
	for _, ch := range domain.SoilChannels {
		values := append([]float32(nil), grid.Channel(ch)...)
		// SoilGrids stores pH scaled by ten and texture fractions as percent.
		var f float32 = 1
		switch ch {
		case domain.ChannelPH:
			f = 10
		case domain.ChannelSand, domain.ChannelClay, domain.ChannelSilt:
			f = 0.1
		}
		for i := range values {
			values[i] *= f
		}
		name := soilgrids.CoverageID(ch) + ".tif"
		if err := writeTile(filepath.Join(dir, name), extent, width, height, values, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeTaxonomy(dir string, extent domain.BoundingBox, width, height int, opts geotiff.EncodeOptions) error {
	grid := synthetic.MockLandCover(extent, width, height)
	fallback, _ := landcover.TaxonomyFor(40)

	values := make([]float32, len(grid.Codes()))
	unmapped := 0
	for i, code := range grid.Codes() {
		tax, ok := landcover.TaxonomyFor(code)
		if !ok {
			tax = fallback
			unmapped++
		}
		values[i] = float32(tax)
	}
	if unmapped > 0 {
		log.Printf("%d cells have no taxonomy class and were written as cropland", unmapped)
	}
	return writeTile(filepath.Join(dir, landcover.TaxonomyFilename), extent, width, height, values, opts)
}

func writeTile(path string, extent domain.BoundingBox, width, height int, values []float32, opts geotiff.EncodeOptions) error {
	img := &geotiff.Image{
		Width:         width,
		Height:        height,
		Data:          values,
		Georeferenced: true,
		Bounds: geotiff.Bounds{
			MinLon: extent.MinLon,
			MinLat: extent.MinLat,
			MaxLon: extent.MaxLon,
			MaxLat: extent.MaxLat,
		},
	}

	var buf bytes.Buffer
	if err := geotiff.Encode(&buf, img, opts); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // fixture output path from flags
		return err
	}
	log.Printf("wrote %s (%dx%d, %d bytes)", path, width, height, buf.Len())
	return nil
}
