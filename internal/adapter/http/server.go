package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/pipeline"
	"github.com/couchcryptid/habitat-suitability-service/internal/upstream"
)

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response was written.
const statusClientClosedRequest = 499

// Suitability computes suitability grids on demand.
type Suitability interface {
	Refresh(ctx context.Context, req pipeline.RefreshRequest) (domain.SuitabilityResult, error)
	Recompute(ctx context.Context, includeWeather bool) (domain.SuitabilityResult, error)
}

// LatestResult returns the most recently applied result.
type LatestResult interface {
	Latest() (domain.SuitabilityResult, bool)
}

// Options configures the suitability routes.
type Options struct {
	DefaultGridSize int
	MaxGridSize     int
	// IncludeWeather is used when a request does not set the weather parameter.
	IncludeWeather bool
}

// Server exposes the suitability API alongside health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        Suitability
	latest     LatestResult
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1/suitability, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, svc Suitability, latest LatestResult, ready sharedobs.ReadinessChecker, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		latest: latest,
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /v1/suitability", s.handleRefresh)
	mux.HandleFunc("POST /v1/suitability/recompute", s.handleRecompute)
	mux.HandleFunc("GET /v1/suitability/latest", s.handleLatest)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	bbox, err := domain.ParseBoundingBox(q.Get("bbox"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	width, err := s.gridSize(q.Get("width"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := s.gridSize(q.Get("height"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	include, err := s.includeWeather(q.Get("weather"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.svc.Refresh(r.Context(), pipeline.RefreshRequest{
		BBox:           bbox,
		Width:          width,
		Height:         height,
		IncludeWeather: include,
		CancelPending:  true,
	})
	if err != nil {
		s.writeComputeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	include, err := s.includeWeather(r.URL.Query().Get("weather"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.svc.Recompute(r.Context(), include)
	if err != nil {
		s.writeComputeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.latest.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no suitability result has been computed yet"))
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) gridSize(v string) (int, error) {
	if v == "" {
		return s.opts.DefaultGridSize, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > s.opts.MaxGridSize {
		return 0, errors.New("grid size must be an integer between 1 and " + strconv.Itoa(s.opts.MaxGridSize))
	}
	return n, nil
}

func (s *Server) includeWeather(v string) (bool, error) {
	if v == "" {
		return s.opts.IncludeWeather, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("weather must be a boolean")
	}
	return b, nil
}

func (s *Server) writeComputeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBBox):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pipeline.ErrSuperseded), errors.Is(err, pipeline.ErrNoInputs):
		writeError(w, http.StatusConflict, err)
	case r.Context().Err() != nil:
		s.logger.Debug("client closed request", "path", r.URL.Path, "error", err)
		w.WriteHeader(statusClientClosedRequest)
	case upstream.IsCanceled(err):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("suitability request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// resultResponse is the JSON body of a suitability result. The woodland
// mask is widened so it encodes as a number array.
type resultResponse struct {
	domain.Summary
	Scores       []float32               `json:"scores"`
	Categories   []domain.Category       `json:"categories"`
	WoodlandMask []int                   `json:"woodland_mask"`
	WeatherMask  []domain.WeatherOverlay `json:"weather_mask"`
}

func newResultResponse(res domain.SuitabilityResult) resultResponse {
	mask := make([]int, len(res.WoodlandMask))
	for i, v := range res.WoodlandMask {
		mask[i] = int(v)
	}
	return resultResponse{
		Summary:      res.Summary(),
		Scores:       res.Scores,
		Categories:   res.Categories,
		WoodlandMask: mask,
		WeatherMask:  res.WeatherMask,
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
