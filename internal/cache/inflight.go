package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is the cause attached to fetches aborted by CancelAll.
// It matches context.Canceled under errors.Is.
var ErrCancelled = fmt.Errorf("in-flight fetch cancelled: %w", context.Canceled)

// InFlight coalesces concurrent fetches for the same key. Fetches run on a
// context detached from any single caller so that one caller giving up does
// not fail the others; CancelAll is the only way to abort them.
type InFlight[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

type call[V any] struct {
	done   chan struct{}
	val    V
	err    error
	cancel context.CancelCauseFunc
}

// Do returns the result of fn for key, starting it only if no fetch for key
// is outstanding. If ctx ends first, Do returns ctx.Err() and the fetch keeps
// running for the remaining waiters.
func (g *InFlight[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[V])
	}
	c, ok := g.calls[key]
	if !ok {
		fetchCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
		c = &call[V]{done: make(chan struct{}), cancel: cancel}
		g.calls[key] = c
		go g.run(fetchCtx, key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Pending returns the number of outstanding fetches.
func (g *InFlight[V]) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// CancelAll aborts every outstanding fetch and clears the table. Waiters
// receive an error matching context.Canceled.
func (g *InFlight[V]) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, c := range g.calls {
		c.cancel(ErrCancelled)
		delete(g.calls, key)
	}
}

func (g *InFlight[V]) run(ctx context.Context, key string, c *call[V], fn func(ctx context.Context) (V, error)) {
	val, err := fn(ctx)
	if cause := context.Cause(ctx); cause != nil {
		// A cancelled fetch never reports success.
		var zero V
		val = zero
		if err == nil || !errors.Is(err, context.Canceled) {
			err = cause
		}
	}
	c.val, c.err = val, err
	c.cancel(nil)

	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(c.done)
}
