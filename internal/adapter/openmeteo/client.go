// Package openmeteo summarises the last day of Open-Meteo hourly weather at
// a bbox centre and spreads it across a grid.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"github.com/couchcryptid/habitat-suitability-service/internal/cache"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
	"github.com/couchcryptid/habitat-suitability-service/internal/synthetic"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// SourceName labels errors and metrics from this client.
const SourceName = "Open-Meteo"

// Summary defaults and limits.
const (
	DefaultPrecipitation = 2.8
	DefaultTemperature   = 11.0

	maxPrecipitation = 12.0
	minTemperature   = -5.0
	maxTemperature   = 23.0

	summaryHours   = 24
	variationScale = 0.38
)

// ErrMissingHourly is returned when a response has no hourly block.
var ErrMissingHourly = errors.New("weather payload missing hourly data")

// Options configures a Client.
type Options struct {
	// APIURL is the forecast endpoint. When empty, default conditions are used.
	APIURL  string
	Enabled bool
	UseMock bool
	Cache   *cache.TTL[domain.WeatherGrid]
}

// Summary is the base precipitation (mm over the last day) and mean
// temperature (°C) at a point.
type Summary struct {
	Precipitation float64
	Temperature   float64
}

// Client serves weather grids synthesised from live point summaries.
type Client struct {
	source   upstream.Source
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	cache    *cache.TTL[domain.WeatherGrid]
	inflight cache.InFlight[domain.WeatherGrid]
}

// NewClient creates a weather client.
func NewClient(source upstream.Source, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		source:  source,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		cache:   opts.Cache,
	}
	if c.cache == nil {
		c.cache = cache.NewTTL[domain.WeatherGrid](cache.DefaultTTL, 0, nil)
	}
	if opts.Enabled {
		metrics.WeatherEnabled.Set(1)
	} else {
		metrics.WeatherEnabled.Set(0)
	}
	return c
}

// FetchGrid returns a weather grid for bbox at width x height. When live
// weather is disabled or mock mode is on, a synthetic grid is returned.
func (c *Client) FetchGrid(ctx context.Context, bbox domain.BoundingBox, width, height int) (domain.WeatherGrid, error) {
	if !c.opts.Enabled || c.opts.UseMock {
		return synthetic.MockWeather(bbox, width, height), nil
	}

	key := cache.Key(bbox, width, height)
	if g, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
		return g.Clone(), nil
	}
	c.metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()

	g, err := c.inflight.Do(ctx, key, func(ctx context.Context) (domain.WeatherGrid, error) {
		s, err := c.FetchSummary(ctx, bbox)
		if err != nil {
			return domain.WeatherGrid{}, err
		}
		return Grid(bbox, width, height, s), nil
	})
	if err != nil {
		return domain.WeatherGrid{}, err
	}
	c.cache.Set(key, g)
	return g.Clone(), nil
}

// CancelPending aborts outstanding weather requests.
func (c *Client) CancelPending() {
	c.inflight.CancelAll()
}

// Grid spreads a summary over bbox with a seed derived from its values.
func Grid(bbox domain.BoundingBox, width, height int, s Summary) domain.WeatherGrid {
	seed := math.Floor((s.Precipitation+s.Temperature)*1000 + 0.5)
	return synthetic.Weather(bbox, width, height, s.Precipitation, s.Temperature, synthetic.WeatherOptions{
		Seed:           seed,
		VariationScale: variationScale,
	})
}

// FetchSummary requests hourly weather at the bbox centre and summarises the
// last 24 valid hours.
func (c *Client) FetchSummary(ctx context.Context, bbox domain.BoundingBox) (Summary, error) {
	if c.opts.APIURL == "" {
		return Summary{Precipitation: DefaultPrecipitation, Temperature: DefaultTemperature}, nil
	}
	lat, lon := bbox.Center()
	ref, err := ForecastURL(c.opts.APIURL, lat, lon)
	if err != nil {
		return Summary{}, err
	}

	p, err := c.source.Fetch(ctx, ref)
	if err != nil {
		return Summary{}, err
	}
	s, err := ParseSummary(p.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", SourceName, err)
	}
	c.logger.Debug("weather summary fetched",
		"lat", lat,
		"lon", lon,
		"precipitation_mm", s.Precipitation,
		"temperature_c", s.Temperature,
	)
	return s, nil
}

// ForecastURL builds the hourly forecast request for a point.
func ForecastURL(base string, lat, lon float64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse weather API URL: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 3, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 3, 64))
	q.Set("hourly", "temperature_2m,precipitation")
	q.Set("past_days", "1")
	q.Set("forecast_days", "1")
	q.Set("timezone", "UTC")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open-Meteo response shape. Hourly series may contain nulls.
type forecastResponse struct {
	Hourly *struct {
		Precipitation []*float64 `json:"precipitation"`
		Temperature   []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// ParseSummary sums precipitation and averages temperature over the last 24
// finite hourly values. Missing series fall back to defaults; results are
// clamped to plausible ranges.
func ParseSummary(data []byte) (Summary, error) {
	var resp forecastResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Summary{}, fmt.Errorf("decode weather response: %w", err)
	}
	if resp.Hourly == nil {
		return Summary{}, ErrMissingHourly
	}

	precip := DefaultPrecipitation
	if vals := lastFinite(resp.Hourly.Precipitation, summaryHours); len(vals) > 0 {
		precip = sum(vals)
	}
	temp := DefaultTemperature
	if vals := lastFinite(resp.Hourly.Temperature, summaryHours); len(vals) > 0 {
		temp = sum(vals) / float64(len(vals))
	}
	return Summary{
		Precipitation: clamp(precip, 0, maxPrecipitation),
		Temperature:   clamp(temp, minTemperature, maxTemperature),
	}, nil
}

func lastFinite(series []*float64, n int) []float64 {
	vals := make([]float64, 0, len(series))
	for _, v := range series {
		if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			vals = append(vals, *v)
		}
	}
	if len(vals) > n {
		vals = vals[len(vals)-n:]
	}
	return vals
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
