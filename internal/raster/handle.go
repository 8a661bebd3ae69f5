package raster

import (
	"context"
	"fmt"
	"sync"
)

// ErrDatasetCancelled is returned to waiters of a load aborted by Cancel.
var ErrDatasetCancelled = fmt.Errorf("dataset load cancelled: %w", context.Canceled)

// Loader fetches and decodes a full dataset.
type Loader func(ctx context.Context) (*Dataset, error)

// DatasetHandle lazily loads one Dataset and keeps it for the life of the
// owning client. At most one load runs at a time. Callers waiting on a load
// are counted; when the last of them gives up the load is cancelled.
type DatasetHandle struct {
	load Loader

	mu      sync.Mutex
	dataset *Dataset
	pending *load
}

type load struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	done    chan struct{}
	waiters int
	dataset *Dataset
	err     error
}

// NewDatasetHandle returns a handle that calls fn on first use.
func NewDatasetHandle(fn Loader) *DatasetHandle {
	return &DatasetHandle{load: fn}
}

// Get returns the loaded dataset, starting or joining a load if needed.
func (h *DatasetHandle) Get(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.dataset != nil {
		ds := h.dataset
		h.mu.Unlock()
		return ds, nil
	}
	l := h.pending
	if l == nil {
		lctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
		l = &load{ctx: lctx, cancel: cancel, done: make(chan struct{})}
		h.pending = l
		go h.run(l)
	}
	l.waiters++
	h.mu.Unlock()

	select {
	case <-l.done:
		return l.dataset, l.err
	case <-l.ctx.Done():
		select {
		case <-l.done:
			return l.dataset, l.err
		default:
		}
		return nil, context.Cause(l.ctx)
	case <-ctx.Done():
		h.leave(l, ctx.Err())
		return nil, ctx.Err()
	}
}

// leave drops one waiter and cancels the load once nobody is waiting.
func (h *DatasetHandle) leave(l *load, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l.waiters--
	if l.waiters > 0 {
		return
	}
	l.cancel(cause)
	if h.pending == l {
		h.pending = nil
	}
}

func (h *DatasetHandle) run(l *load) {
	ds, err := h.load(l.ctx)
	if cause := context.Cause(l.ctx); cause != nil {
		ds, err = nil, cause
	}
	if err != nil {
		ds = nil
	}

	h.mu.Lock()
	if h.pending == l {
		h.pending = nil
		if err == nil {
			h.dataset = ds
		}
	}
	h.mu.Unlock()

	l.dataset, l.err = ds, err
	close(l.done)
	l.cancel(nil)
}

// Cancel aborts any load in progress and forgets the loaded dataset.
func (h *DatasetHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		h.pending.cancel(ErrDatasetCancelled)
		h.pending = nil
	}
	h.dataset = nil
}

// Loaded reports whether a dataset is held.
func (h *DatasetHandle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dataset != nil
}
