package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	UseMockData    bool
	WeatherEnabled bool

	// Upstream sources. A tile directory takes precedence over its URL.
	SoilGridsWCSURL      string
	SoilTileDir          string
	LandCoverTaxonomyURL string
	LandCoverTileDir     string
	WeatherAPIURL        string

	// DataExtent is the area loaded once per source dataset.
	DataExtent   domain.BoundingBox
	SourceWidth  int
	SourceHeight int

	SampleGridSize int
	MaxGridSize    int

	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int
	UpstreamRetryBase  time.Duration
	UpstreamRateLimit  float64

	CacheTTL  time.Duration
	CacheSize int

	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	extent, err := domain.ParseBoundingBox(sharedcfg.EnvOrDefault("DATA_EXTENT", "-9.6,49.0,3.2,60.0"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATA_EXTENT: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SoilGridsWCSURL:      sharedcfg.EnvOrDefault("SOILGRIDS_WCS_URL", "https://maps.isric.org/mapserv?map=/mapfiles/soilgrids.map"),
		SoilTileDir:          os.Getenv("SOIL_TILE_DIR"),
		LandCoverTaxonomyURL: os.Getenv("LANDCOVER_TAXONOMY_URL"),
		LandCoverTileDir:     os.Getenv("LANDCOVER_TILE_DIR"),
		WeatherAPIURL:        sharedcfg.EnvOrDefault("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast"),

		DataExtent: extent,

		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "suitability-results"),
	}

	bools := []struct {
		name string
		def  bool
		dst  *bool
	}{
		{"USE_MOCK_DATA", false, &cfg.UseMockData},
		{"WEATHER_ENABLED", true, &cfg.WeatherEnabled},
		{"KAFKA_ENABLED", false, &cfg.KafkaEnabled},
	}
	for _, b := range bools {
		if *b.dst, err = parseBool(b.name, b.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		name string
		def  int
		min  int
		dst  *int
	}{
		{"SOURCE_WIDTH", 480, 1, &cfg.SourceWidth},
		{"SOURCE_HEIGHT", 480, 1, &cfg.SourceHeight},
		{"SAMPLE_GRID_SIZE", 64, 1, &cfg.SampleGridSize},
		{"MAX_GRID_SIZE", 256, 1, &cfg.MaxGridSize},
		{"UPSTREAM_MAX_RETRIES", 3, 0, &cfg.UpstreamMaxRetries},
		{"CACHE_SIZE", 256, 1, &cfg.CacheSize},
	}
	for _, n := range ints {
		if *n.dst, err = parseInt(n.name, n.def, n.min); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"UPSTREAM_TIMEOUT", "15s", &cfg.UpstreamTimeout},
		{"UPSTREAM_RETRY_BASE", "500ms", &cfg.UpstreamRetryBase},
		{"CACHE_TTL", "30m", &cfg.CacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.name, d.def); err != nil {
			return nil, err
		}
	}

	rateStr := sharedcfg.EnvOrDefault("UPSTREAM_RATE_LIMIT", "5")
	cfg.UpstreamRateLimit, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.UpstreamRateLimit <= 0 {
		return nil, errors.New("invalid UPSTREAM_RATE_LIMIT")
	}

	if cfg.SampleGridSize > cfg.MaxGridSize {
		return nil, errors.New("SAMPLE_GRID_SIZE must not exceed MAX_GRID_SIZE")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaResultsTopic == "" {
		return nil, errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("invalid " + name)
	}
	return v, nil
}

func parseInt(name string, def, lowest int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return d, nil
}
