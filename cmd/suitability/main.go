package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/habitat-suitability-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/habitat-suitability-service/internal/adapter/kafka"
	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/landcover"
	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/soilgrids"
	"github.com/couchcryptid/habitat-suitability-service/internal/cache"
	"github.com/couchcryptid/habitat-suitability-service/internal/config"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
	"github.com/couchcryptid/habitat-suitability-service/internal/pipeline"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	soil := newSoilClient(cfg, logger, metrics)
	land := newLandCoverClient(cfg, logger, metrics)
	weather := openmeteo.NewClient(httpSource(cfg, openmeteo.SourceName, logger, metrics), openmeteo.Options{
		APIURL:  cfg.WeatherAPIURL,
		Enabled: cfg.WeatherEnabled,
		UseMock: cfg.UseMockData,
		Cache:   cache.NewTTL[domain.WeatherGrid](cfg.CacheTTL, cfg.CacheSize, nil),
	}, logger, metrics)
	if cfg.UseMockData {
		logger.Info("mock data mode enabled, upstream sources will not be contacted")
	}

	// Initialize result publisher (feature-flagged via KAFKA_ENABLED).
	var publisher pipeline.ResultPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka result publishing enabled", "topic", cfg.KafkaResultsTopic)
	} else {
		logger.Info("kafka result publishing disabled")
	}

	p := pipeline.New(publisher, logger, metrics, 0)
	coord := pipeline.NewCoordinator(soil, land, weather, p.Worker(), p.Store(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, p.Store(), p, httpadapter.Options{
		DefaultGridSize: cfg.SampleGridSize,
		MaxGridSize:     cfg.MaxGridSize,
		IncludeWeather:  cfg.WeatherEnabled,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start compute pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// Compute an initial grid over the data extent so the service reports ready.
	go func() {
		_, err := coord.Refresh(ctx, pipeline.RefreshRequest{
			BBox:           cfg.DataExtent,
			Width:          cfg.SampleGridSize,
			Height:         cfg.SampleGridSize,
			IncludeWeather: cfg.WeatherEnabled,
		})
		switch {
		case err == nil || ctx.Err() != nil:
		case errors.Is(err, pipeline.ErrSuperseded):
			logger.Info("initial suitability computation superseded by a newer request")
		default:
			logger.Error("initial suitability computation failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	soil.CancelPending()
	land.CancelPending()
	weather.CancelPending()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func httpSource(cfg *config.Config, name string, logger *slog.Logger, metrics *observability.Metrics) *upstream.HTTPSource {
	return upstream.NewHTTPSource(upstream.Options{
		Name:       name,
		Timeout:    cfg.UpstreamTimeout,
		MaxRetries: cfg.UpstreamMaxRetries,
		RetryBase:  cfg.UpstreamRetryBase,
		RateLimit:  cfg.UpstreamRateLimit,
	}, logger, metrics)
}

// newSoilClient reads coverages from SOIL_TILE_DIR when set, otherwise from
// the SoilGrids WCS.
func newSoilClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *soilgrids.Client {
	opts := soilgrids.Options{
		Extent:       cfg.DataExtent,
		SourceWidth:  cfg.SourceWidth,
		SourceHeight: cfg.SourceHeight,
		UseMock:      cfg.UseMockData,
		Cache:        cache.NewTTL[domain.SoilGrid](cfg.CacheTTL, cfg.CacheSize, nil),
	}
	var source upstream.Source
	if cfg.SoilTileDir != "" {
		source = upstream.NewDirSource(soilgrids.SourceName, os.DirFS(cfg.SoilTileDir))
		logger.Info("reading soil coverages from tile directory", "dir", cfg.SoilTileDir)
	} else {
		source = httpSource(cfg, soilgrids.SourceName, logger, metrics)
		opts.WCSURL = cfg.SoilGridsWCSURL
	}
	return soilgrids.NewClient(source, opts, logger, metrics)
}

// newLandCoverClient reads the taxonomy raster from LANDCOVER_TILE_DIR when
// set, otherwise from LANDCOVER_TAXONOMY_URL. With neither, every fetch
// falls back to synthetic land cover.
func newLandCoverClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *landcover.Client {
	opts := landcover.Options{
		Extent:  cfg.DataExtent,
		UseMock: cfg.UseMockData,
		Cache:   cache.NewTTL[domain.LandCoverGrid](cfg.CacheTTL, cfg.CacheSize, nil),
	}
	var source upstream.Source
	switch {
	case cfg.LandCoverTileDir != "":
		source = upstream.NewDirSource(landcover.SourceName, os.DirFS(cfg.LandCoverTileDir))
		opts.Ref = landcover.TaxonomyFilename
		opts.Hint = "Place " + landcover.TaxonomyFilename + " in " + cfg.LandCoverTileDir + " or set LANDCOVER_TAXONOMY_URL."
	case cfg.LandCoverTaxonomyURL != "":
		source = httpSource(cfg, landcover.SourceName, logger, metrics)
		opts.Ref = cfg.LandCoverTaxonomyURL
	default:
		logger.Warn("no land-cover source configured, synthetic land cover will be used")
	}
	return landcover.NewClient(source, opts, logger, metrics)
}
