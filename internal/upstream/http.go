// Package upstream fetches raw payloads from remote services or bundled
// directories, with rate limiting and retry for HTTP sources.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
)

// Payload is a fetched body and its declared content type.
type Payload struct {
	Data        []byte
	ContentType string
}

// Source fetches the payload named by ref: a URL for HTTP sources, a file
// name for directory sources.
type Source interface {
	Fetch(ctx context.Context, ref string) (Payload, error)
}

// Options configures an HTTPSource.
type Options struct {
	// Name labels errors, logs and metrics, e.g. "SoilGrids".
	Name       string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	MaxBackoff time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
}

// HTTPSource issues GET requests, retrying transient failures with
// exponential backoff.
type HTTPSource struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewHTTPSource creates an HTTP source.
func NewHTTPSource(opts Options, logger *slog.Logger, metrics *observability.Metrics) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}
	return &HTTPSource{
		name: opts.Name,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:    limiter,
		maxRetries: max(0, opts.MaxRetries),
		retryBase:  opts.RetryBase,
		maxBackoff: opts.MaxBackoff,
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch GETs rawURL. 429 and 5xx responses and transport errors are retried
// up to MaxRetries times, waiting RetryBase*2^n between attempts. Other
// non-2xx statuses fail immediately with a PermanentError. Cancellation is
// returned as-is.
func (s *HTTPSource) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	start := time.Now()
	p, err := s.fetchWithRetry(ctx, rawURL)
	s.metrics.UpstreamDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		s.metrics.UpstreamRequests.WithLabelValues(s.name, "success").Inc()
	case IsCanceled(err):
		s.metrics.UpstreamRequests.WithLabelValues(s.name, "canceled").Inc()
	default:
		s.metrics.UpstreamRequests.WithLabelValues(s.name, "error").Inc()
	}
	return p, err
}

func (s *HTTPSource) fetchWithRetry(ctx context.Context, rawURL string) (Payload, error) {
	backoff := s.retryBase
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return Payload{}, ctx.Err()
			}
			return Payload{}, fmt.Errorf("%s rate limiter wait: %w", s.name, err)
		}

		p, err := s.do(ctx, rawURL)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return Payload{}, ctx.Err()
		}
		if !IsTransient(err) {
			return Payload{}, err
		}
		if attempt >= s.maxRetries {
			return Payload{}, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		s.logger.Warn("upstream request failed, retrying",
			"source", s.name, "attempt", attempt+1, "backoff", backoff, "error", err)
		s.metrics.UpstreamRetries.WithLabelValues(s.name).Inc()
		if !sleepWithContext(ctx, backoff) {
			return Payload{}, ctx.Err()
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}
}

func (s *HTTPSource) do(ctx context.Context, rawURL string) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Payload{}, ctx.Err()
		}
		return Payload{}, &TransientError{Source: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Payload{}, &TransientError{
			Source:     s.name,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Payload{}, &PermanentError{Source: s.name, StatusCode: resp.StatusCode, Body: geotiff.ServiceMessage(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Payload{}, ctx.Err()
		}
		return Payload{}, &TransientError{Source: s.name, Err: fmt.Errorf("read body: %w", err)}
	}
	return Payload{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
