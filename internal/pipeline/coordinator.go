package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
	"github.com/couchcryptid/habitat-suitability-service/internal/synthetic"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// ErrNoInputs is returned by Recompute before any refresh has completed.
var ErrNoInputs = errors.New("no previous inputs to recompute from")

// SoilSource fetches soil grids.
type SoilSource interface {
	FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.SoilGrid, error)
	CancelPending()
}

// LandCoverSource fetches land-cover grids.
type LandCoverSource interface {
	FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.LandCoverGrid, error)
	CancelPending()
}

// WeatherSource fetches weather grids.
type WeatherSource interface {
	FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.WeatherGrid, error)
	CancelPending()
}

// RefreshRequest asks for a fresh suitability grid.
type RefreshRequest struct {
	BBox           domain.BoundingBox
	Width          int
	Height         int
	IncludeWeather bool
	// CancelPending aborts fetches still running for earlier requests.
	CancelPending bool
}

// Coordinator fetches the input layers for a request, hands them to the
// worker and waits for the outcome.
type Coordinator struct {
	soil    SoilSource
	land    LandCoverSource
	weather WeatherSource
	worker  *Worker
	store   *ResultStore
	logger  *slog.Logger
	metrics *observability.Metrics

	nextID atomic.Uint64

	mu   sync.Mutex
	last *Request
}

// NewCoordinator wires the layer sources to a worker and result store.
func NewCoordinator(soil SoilSource, land LandCoverSource, weather WeatherSource, worker *Worker, store *ResultStore, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		soil:    soil,
		land:    land,
		weather: weather,
		worker:  worker,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Refresh fetches all layers for req and returns the scored result.
// Layers that fail for reasons other than cancellation are replaced with
// synthetic data and flagged on the result. ErrSuperseded is returned if a
// newer request is applied first or cancels this request's fetches.
func (c *Coordinator) Refresh(ctx context.Context, req RefreshRequest) (domain.SuitabilityResult, error) {
	if err := req.BBox.Validate(); err != nil {
		return domain.SuitabilityResult{}, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return domain.SuitabilityResult{}, fmt.Errorf("invalid grid size %dx%d", req.Width, req.Height)
	}

	id := c.nextID.Add(1)
	c.metrics.RefreshRequests.WithLabelValues("refresh").Inc()
	if req.CancelPending {
		c.soil.CancelPending()
		c.land.CancelPending()
		c.weather.CancelPending()
	}

	work := Request{
		RequestID: id,
		BBox:      req.BBox,
		Config:    Config{IncludeWeather: req.IncludeWeather},
	}
	if err := c.fetchLayers(ctx, req, &work); err != nil {
		// A cancelled fetch under a live ctx was aborted by a newer request.
		if upstream.IsCanceled(err) && ctx.Err() == nil {
			return domain.SuitabilityResult{}, fmt.Errorf("%w: %w", ErrSuperseded, err)
		}
		return domain.SuitabilityResult{}, err
	}

	c.mu.Lock()
	last := cloneRequest(work)
	c.last = &last
	c.mu.Unlock()

	return c.submit(ctx, work)
}

// Recompute scores the most recent inputs again under a new request id
// without fetching anything.
func (c *Coordinator) Recompute(ctx context.Context, includeWeather bool) (domain.SuitabilityResult, error) {
	c.mu.Lock()
	if c.last == nil {
		c.mu.Unlock()
		return domain.SuitabilityResult{}, ErrNoInputs
	}
	work := cloneRequest(*c.last)
	c.mu.Unlock()

	work.RequestID = c.nextID.Add(1)
	work.Config.IncludeWeather = includeWeather && work.Weather != nil
	c.metrics.RefreshRequests.WithLabelValues("recompute").Inc()
	return c.submit(ctx, work)
}

func (c *Coordinator) submit(ctx context.Context, work Request) (domain.SuitabilityResult, error) {
	outcome := c.store.Watch(work.RequestID)
	if err := c.worker.Submit(ctx, work); err != nil {
		c.store.Unwatch(work.RequestID, outcome)
		return domain.SuitabilityResult{}, err
	}
	select {
	case o := <-outcome:
		return o.Result, o.Err
	case <-ctx.Done():
		c.store.Unwatch(work.RequestID, outcome)
		return domain.SuitabilityResult{}, ctx.Err()
	}
}

func (c *Coordinator) fetchLayers(ctx context.Context, req RefreshRequest, work *Request) error {
	var (
		g        errgroup.Group
		fallback domain.LayerFallback
	)
	bbox, w, h := req.BBox, req.Width, req.Height

	g.Go(func() error {
		grid, err := c.soil.FetchGrid(ctx, bbox, w, h)
		if err != nil {
			if !c.fallBack(ctx, "soil", work.RequestID, err) {
				return err
			}
			grid, fallback.Soil = synthetic.MockSoil(bbox, w, h), true
		}
		work.Soil = grid
		return nil
	})
	g.Go(func() error {
		grid, err := c.land.FetchGrid(ctx, bbox, w, h)
		if err != nil {
			if !c.fallBack(ctx, "landcover", work.RequestID, err) {
				return err
			}
			grid, fallback.LandCover = synthetic.MockLandCover(bbox, w, h), true
		}
		work.LandCover = grid
		return nil
	})
	if req.IncludeWeather {
		g.Go(func() error {
			grid, err := c.weather.FetchGrid(ctx, bbox, w, h)
			if err != nil {
				if !c.fallBack(ctx, "weather", work.RequestID, err) {
					return err
				}
				grid, fallback.Weather = synthetic.MockWeather(bbox, w, h), true
			}
			work.Weather = &grid
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	work.Fallback = fallback
	return nil
}

// fallBack reports whether a failed layer may be replaced with synthetic
// data. Cancellations never are.
func (c *Coordinator) fallBack(ctx context.Context, layer string, id uint64, err error) bool {
	if upstream.IsCanceled(err) || ctx.Err() != nil {
		return false
	}
	c.metrics.Fallbacks.WithLabelValues(layer).Inc()
	c.logger.Warn("layer unavailable, using synthetic data",
		"layer", layer,
		"request_id", id,
		"error", err,
	)
	return true
}

func cloneRequest(r Request) Request {
	out := r
	out.Soil = r.Soil.Clone()
	out.LandCover = r.LandCover.Clone()
	if r.Weather != nil {
		w := r.Weather.Clone()
		out.Weather = &w
	}
	return out
}
