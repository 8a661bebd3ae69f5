// Package soilgrids loads SoilGrids topsoil properties over the configured
// data extent and resamples them onto requested grids.
package soilgrids

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/habitat-suitability-service/internal/cache"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
	"github.com/couchcryptid/habitat-suitability-service/internal/raster"
	"github.com/couchcryptid/habitat-suitability-service/internal/synthetic"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// SourceName labels errors and metrics from this client.
const SourceName = "SoilGrids"

const (
	depth     = "0-5cm"
	statistic = "mean"
	format    = "GEOTIFF_FLOAT32"
)

// CoverageID returns the WCS coverage id of a soil channel, e.g. "phh2o_0-5cm_mean".
func CoverageID(channel string) string {
	return fmt.Sprintf("%s_%s_%s", channel, depth, statistic)
}

// Options configures a Client.
type Options struct {
	// WCSURL is the GetCoverage endpoint. When empty, coverages are read
	// from the source as "<coverage id>.tif".
	WCSURL string
	// Extent is the area loaded once and resampled for every request.
	Extent       domain.BoundingBox
	SourceWidth  int
	SourceHeight int
	UseMock      bool
	Cache        *cache.TTL[domain.SoilGrid]
}

// Client serves soil grids from six property datasets loaded on first use.
type Client struct {
	source   upstream.Source
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	datasets map[string]*raster.DatasetHandle
	cache    *cache.TTL[domain.SoilGrid]
	inflight cache.InFlight[domain.SoilGrid]
}

// NewClient creates a soil client reading coverages from source.
func NewClient(source upstream.Source, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		source:   source,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		datasets: make(map[string]*raster.DatasetHandle, len(domain.SoilChannels)),
		cache:    opts.Cache,
	}
	if c.cache == nil {
		c.cache = cache.NewTTL[domain.SoilGrid](cache.DefaultTTL, 0, nil)
	}
	for _, ch := range domain.SoilChannels {
		c.datasets[ch] = raster.NewDatasetHandle(func(ctx context.Context) (*raster.Dataset, error) {
			return c.loadChannel(ctx, ch)
		})
	}
	return c
}

// FetchGrid returns soil properties for bbox at width x height. The grid is
// a copy the caller may modify.
func (c *Client) FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.SoilGrid, error) {
	if c.opts.UseMock {
		return synthetic.MockSoil(bbox, width, height), nil
	}

	key := cache.Key(bbox, width, height)
	if g, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("soil", "hit").Inc()
		return g.Clone(), nil
	}
	c.metrics.CacheLookups.WithLabelValues("soil", "miss").Inc()

	g, err := c.inflight.Do(ctx, key, func(ctx context.Context) (domain.SoilGrid, error) {
		return c.resample(ctx, bbox, width, height)
	})
	if err != nil {
		return domain.SoilGrid{}, err
	}
	c.cache.Set(key, g)
	return g.Clone(), nil
}

// CancelPending aborts outstanding grid requests. Dataset loads with no
// remaining waiters are cancelled with them.
func (c *Client) CancelPending() {
	c.inflight.CancelAll()
}

// Reset aborts any dataset load and forgets loaded datasets.
func (c *Client) Reset() {
	for _, h := range c.datasets {
		h.Cancel()
	}
}

func (c *Client) resample(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.SoilGrid, error) {
	loaded := make([]*raster.Dataset, len(domain.SoilChannels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range domain.SoilChannels {
		g.Go(func() error {
			ds, err := c.datasets[ch].Get(gctx)
			if err != nil {
				return err
			}
			loaded[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.SoilGrid{}, err
	}

	grid := domain.NewSoilGrid(width, height)
	for i, ch := range domain.SoilChannels {
		copy(grid.Channel(ch), loaded[i].Bilinear(bbox, width, height))
	}
	return grid, nil
}

func (c *Client) loadChannel(ctx context.Context, channel string) (*raster.Dataset, error) {
	id := CoverageID(channel)
	ds, err := raster.LoadCoverage(ctx, c.source, raster.Coverage{
		Source:   SourceName,
		ID:       id,
		Ref:      c.ref(id),
		Fallback: c.opts.Extent,
	})
	if err != nil {
		return nil, err
	}
	convertUnits(channel, ds.Values)
	c.logger.Info("soil coverage loaded",
		"coverage", id,
		"width", ds.Width,
		"height", ds.Height,
		"bounds", ds.Bounds.String(),
	)
	return ds, nil
}

func (c *Client) ref(coverageID string) string {
	if c.opts.WCSURL == "" {
		return coverageID + ".tif"
	}
	return WCSURL(c.opts.WCSURL, coverageID, c.opts.Extent, c.opts.SourceWidth, c.opts.SourceHeight)
}

// WCSURL builds a WCS 2.0.1 GetCoverage request for a coverage over extent.
func WCSURL(base, coverageID string, extent domain.BoundingBox, width, height int) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("SERVICE", "WCS")
	q.Set("REQUEST", "GetCoverage")
	q.Set("VERSION", "2.0.1")
	q.Set("COVERAGEID", coverageID)
	q.Set("FORMAT", format)
	q.Set("SUBSETTINGCRS", "EPSG:4326")
	q.Set("OUTPUTCRS", "EPSG:4326")
	q["SUBSET"] = []string{
		fmt.Sprintf("Long(%s,%s)", coord(extent.MinLon), coord(extent.MaxLon)),
		fmt.Sprintf("Lat(%s,%s)", coord(extent.MinLat), coord(extent.MaxLat)),
	}
	q["SCALESIZE"] = []string{
		fmt.Sprintf("Long(%d)", width),
		fmt.Sprintf("Lat(%d)", height),
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// convertUnits rescales SoilGrids storage units in place: pH is stored x10
// and texture fractions are stored as percent, so every texture channel is
// multiplied by ten to give g/kg.
func convertUnits(channel string, values []float32) {
	switch channel {
	case domain.ChannelPH:
		scale(values, 0.1)
	case domain.ChannelSand, domain.ChannelClay, domain.ChannelSilt:
		scale(values, 10)
	}
}

func scale(values []float32, f float32) {
	for i, v := range values {
		if !math.IsNaN(float64(v)) {
			values[i] = v * f
		}
	}
}
