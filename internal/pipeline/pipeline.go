// Package pipeline scores suitability grids: a compute worker consumes
// queued requests, a consumer applies results in request order, and a
// coordinator fetches the input layers for each request.
package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
)

// Pipeline owns the compute worker, its result consumer and the store they
// feed.
type Pipeline struct {
	worker   *Worker
	consumer *Consumer
	store    *ResultStore
	logger   *slog.Logger
}

// New creates a Pipeline. publisher may be nil.
func New(publisher ResultPublisher, logger *slog.Logger, metrics *observability.Metrics, queueSize int) *Pipeline {
	worker := NewWorker(queueSize, logger, metrics)
	store := NewResultStore()
	return &Pipeline{
		worker:   worker,
		consumer: NewConsumer(worker.Results(), store, publisher, logger, metrics),
		store:    store,
		logger:   logger,
	}
}

// Worker returns the compute worker requests are submitted to.
func (p *Pipeline) Worker() *Worker { return p.worker }

// Store returns the result store.
func (p *Pipeline) Store() *ResultStore { return p.store }

// CheckReadiness returns nil once the pipeline has applied at least one
// result, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.store.CheckReadiness(ctx)
}

// Run executes the worker and consumer until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.worker.Run(ctx) })
	g.Go(func() error { return p.consumer.Run(ctx) })
	err := g.Wait()
	p.logger.Info("pipeline stopped")
	return err
}
