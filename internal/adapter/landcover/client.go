// Package landcover derives land-cover grids from a SoilGrids USDA taxonomy
// raster loaded once per process.
package landcover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/habitat-suitability-service/internal/cache"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
	"github.com/couchcryptid/habitat-suitability-service/internal/raster"
	"github.com/couchcryptid/habitat-suitability-service/internal/synthetic"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// SourceName labels errors and metrics from this client.
const SourceName = "SoilGrids taxonomy"

// ErrNoSource is returned when neither a taxonomy URL nor a tile directory
// is configured.
var ErrNoSource = errors.New("no land-cover taxonomy source configured")

// extentTolerance is how far, in degrees, a loaded raster's edges may
// drift from the expected extent before a warning is logged.
const extentTolerance = 0.5

// Options configures a Client.
type Options struct {
	// Ref is the taxonomy raster URL, or TaxonomyFilename for a directory
	// source. Empty means no source is configured.
	Ref string
	// Hint is appended to load failures, e.g. where the bundled file belongs.
	Hint    string
	Extent  domain.BoundingBox
	UseMock bool
	Cache   *cache.TTL[domain.LandCoverGrid]
}

// Client serves land-cover grids resampled from the taxonomy raster.
type Client struct {
	source   upstream.Source
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	dataset  *raster.DatasetHandle
	cache    *cache.TTL[domain.LandCoverGrid]
	inflight cache.InFlight[domain.LandCoverGrid]
}

// NewClient creates a land-cover client reading the taxonomy from source.
func NewClient(source upstream.Source, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		source:  source,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		cache:   opts.Cache,
	}
	if c.cache == nil {
		c.cache = cache.NewTTL[domain.LandCoverGrid](cache.DefaultTTL, 0, nil)
	}
	c.dataset = raster.NewDatasetHandle(c.load)
	return c
}

// FetchGrid returns land-cover codes for bbox at width x height. The grid is
// a copy the caller may modify.
func (c *Client) FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.LandCoverGrid, error) {
	if c.opts.UseMock {
		return synthetic.MockLandCover(bbox, width, height), nil
	}

	key := cache.Key(bbox, width, height)
	if g, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("landcover", "hit").Inc()
		return g.Clone(), nil
	}
	c.metrics.CacheLookups.WithLabelValues("landcover", "miss").Inc()

	g, err := c.inflight.Do(ctx, key, func(ctx context.Context) (domain.LandCoverGrid, error) {
		ds, err := c.dataset.Get(ctx)
		if err != nil {
			return domain.LandCoverGrid{}, err
		}
		grid := domain.NewLandCoverGrid(width, height)
		codes := grid.Codes()
		for i, v := range ds.Nearest(bbox, width, height) {
			codes[i] = MapTaxonomy(float64(v))
		}
		return grid, nil
	})
	if err != nil {
		return domain.LandCoverGrid{}, err
	}
	c.cache.Set(key, g)
	return g.Clone(), nil
}

// CancelPending aborts outstanding grid requests. A taxonomy load with no
// remaining waiters is cancelled with them.
func (c *Client) CancelPending() {
	c.inflight.CancelAll()
}

// Reset aborts any taxonomy load and forgets the loaded raster.
func (c *Client) Reset() {
	c.dataset.Cancel()
}

func (c *Client) load(ctx context.Context) (*raster.Dataset, error) {
	if c.opts.Ref == "" {
		return nil, ErrNoSource
	}
	ds, err := raster.LoadCoverage(ctx, c.source, raster.Coverage{
		Source:   SourceName,
		Ref:      c.opts.Ref,
		Fallback: c.opts.Extent,
	})
	if err != nil {
		if upstream.IsCanceled(err) || c.opts.Hint == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w. %s", err, c.opts.Hint)
	}

	if !extentMatches(ds.Bounds, c.opts.Extent) {
		c.logger.Warn("land-cover taxonomy extent differs from the soil data extent",
			"expected", c.opts.Extent.String(),
			"actual", ds.Bounds.String(),
		)
	}
	c.logger.Info("land-cover taxonomy loaded",
		"width", ds.Width,
		"height", ds.Height,
		"bounds", ds.Bounds.String(),
	)
	return ds, nil
}

func extentMatches(a, b domain.BoundingBox) bool {
	return math.Abs(a.MinLon-b.MinLon) < extentTolerance &&
		math.Abs(a.MaxLon-b.MaxLon) < extentTolerance &&
		math.Abs(a.MinLat-b.MinLat) < extentTolerance &&
		math.Abs(a.MaxLat-b.MaxLat) < extentTolerance
}
