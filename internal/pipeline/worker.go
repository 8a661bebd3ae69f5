package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
)

const defaultQueueSize = 8

// Worker runs Compute on a dedicated goroutine. Requests arrive on a
// buffered queue and results leave on a completion channel in the order
// they were computed.
type Worker struct {
	requests chan Request
	results  chan domain.SuitabilityResult
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewWorker creates a worker with a queue of queueSize requests.
func NewWorker(queueSize int, logger *slog.Logger, metrics *observability.Metrics) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Worker{
		requests: make(chan Request, queueSize),
		results:  make(chan domain.SuitabilityResult, queueSize),
		logger:   logger,
		metrics:  metrics,
	}
}

// Submit queues req, blocking while the queue is full. Requests whose
// grids break the shape contract are rejected.
func (w *Worker) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("request %d: %w", req.RequestID, err)
	}
	select {
	case w.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results is the completion channel. It is closed when Run returns.
func (w *Worker) Results() <-chan domain.SuitabilityResult {
	return w.results
}

// Run computes queued requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("compute worker started")
	w.metrics.PipelineRunning.Set(1)
	defer w.metrics.PipelineRunning.Set(0)
	defer close(w.results)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("compute worker stopping", "reason", ctx.Err())
			return nil
		case req := <-w.requests:
			start := time.Now()
			res := Compute(req)
			w.metrics.ComputeDuration.Observe(time.Since(start).Seconds())
			w.metrics.CellsScored.Add(float64(len(res.Scores)))
			w.logger.Debug("grid scored",
				"request_id", res.RequestID,
				"width", res.Width,
				"height", res.Height,
				"average_score", res.AverageScore,
			)

			select {
			case w.results <- res:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
