package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/couchcryptid/habitat-suitability-service/internal/observability"
)

// ErrSuperseded is returned to a caller whose request was overtaken by a
// newer one before its result could be applied.
var ErrSuperseded = errors.New("request superseded by a newer request")

// Outcome is delivered to a watcher once its request is applied or dropped.
type Outcome struct {
	Result domain.SuitabilityResult
	Err    error
}

// ResultStore keeps the latest applied result. Results older than the
// highest applied request id are discarded.
type ResultStore struct {
	mu       sync.Mutex
	latest   *domain.SuitabilityResult
	highest  uint64
	watchers map[uint64][]chan Outcome
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{watchers: make(map[uint64][]chan Outcome)}
}

// Apply stores res unless a newer result is already applied. Watchers of
// res and of every older request are notified. It reports whether res was
// applied.
func (s *ResultStore) Apply(res domain.SuitabilityResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil && res.RequestID < s.highest {
		s.notify(res.RequestID, Outcome{Err: ErrSuperseded})
		return false
	}
	s.latest = &res
	s.highest = res.RequestID

	for id := range s.watchers {
		switch {
		case id == res.RequestID:
			s.notify(id, Outcome{Result: res})
		case id < res.RequestID:
			s.notify(id, Outcome{Err: ErrSuperseded})
		}
	}
	return true
}

// notify must be called with s.mu held.
func (s *ResultStore) notify(id uint64, o Outcome) {
	for _, ch := range s.watchers[id] {
		ch <- o
	}
	delete(s.watchers, id)
}

// Watch returns a channel that receives the outcome of request id. Call it
// before submitting the request so the outcome cannot be missed.
func (s *ResultStore) Watch(id uint64) <-chan Outcome {
	ch := make(chan Outcome, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && id < s.highest {
		ch <- Outcome{Err: ErrSuperseded}
		return ch
	}
	s.watchers[id] = append(s.watchers[id], ch)
	return ch
}

// Unwatch removes a watcher that no longer wants the outcome.
func (s *ResultStore) Unwatch(id uint64, ch <-chan Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.watchers[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.watchers, id)
		return
	}
	s.watchers[id] = list
}

// Latest returns the most recently applied result.
func (s *ResultStore) Latest() (domain.SuitabilityResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return domain.SuitabilityResult{}, false
	}
	return *s.latest, true
}

// CheckReadiness returns nil once at least one result has been applied.
func (s *ResultStore) CheckReadiness(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return errors.New("no suitability result has been computed yet")
	}
	return nil
}

// ResultPublisher forwards applied results downstream.
type ResultPublisher interface {
	Publish(ctx context.Context, res domain.SuitabilityResult) error
}

// Consumer drains the worker's completion channel into a ResultStore.
type Consumer struct {
	results   <-chan domain.SuitabilityResult
	store     *ResultStore
	publisher ResultPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewConsumer creates a consumer. publisher may be nil.
func NewConsumer(results <-chan domain.SuitabilityResult, store *ResultStore, publisher ResultPublisher, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		results:   results,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run applies results until the channel closes or ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-c.results:
			if !ok {
				return nil
			}
			c.handle(ctx, res)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, res domain.SuitabilityResult) {
	if !c.store.Apply(res) {
		c.metrics.ResultsDiscarded.Inc()
		c.logger.Debug("stale result discarded", "request_id", res.RequestID)
		return
	}
	c.metrics.ResultsApplied.Inc()
	c.logger.Info("suitability result applied",
		"request_id", res.RequestID,
		"bbox", res.BBox.String(),
		"sample_count", res.SampleCount,
		"average_score", res.AverageScore,
		"degraded", res.Degraded,
	)

	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, res); err != nil {
		c.logger.Warn("publish result failed", "error", err, "request_id", res.RequestID)
	}
}
