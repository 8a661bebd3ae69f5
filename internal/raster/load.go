package raster

import (
	"context"
	"fmt"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// Coverage names one raster to load from a source.
type Coverage struct {
	Source   string // label used in error messages, e.g. "SoilGrids"
	ID       string // coverage id, may be empty
	Ref      string // URL or file name passed to the fetcher
	Fallback domain.BoundingBox
}

// LoadCoverage fetches, unwraps, validates and decodes one coverage.
func LoadCoverage(ctx context.Context, src upstream.Source, c Coverage) (*Dataset, error) {
	p, err := src.Fetch(ctx, c.Ref)
	if err != nil {
		return nil, err
	}
	data, err := geotiff.Unwrap(p.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(c), err)
	}
	if err := geotiff.EnsureRaster(c.Source, c.ID, p.ContentType, data); err != nil {
		return nil, err
	}
	img, err := geotiff.DecodeCoverage(c.Source, c.ID, data)
	if err != nil {
		return nil, err
	}
	ds, err := NewDataset(img, c.Fallback)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(c), err)
	}
	return ds, nil
}

func describe(c Coverage) string {
	if c.ID == "" {
		return c.Source
	}
	return fmt.Sprintf("%s coverage %q", c.Source, c.ID)
}
