package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlight_CoalescesConcurrentCalls(t *testing.T) {
	var g InFlight[int]
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(_ context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const waiters = 5
	var wg sync.WaitGroup
	results := make([]int, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Do(context.Background(), "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining goroutines a chance to join the pending call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 0, g.Pending())
}

func TestInFlight_DistinctKeysRunSeparately(t *testing.T) {
	var g InFlight[string]
	a, err := g.Do(context.Background(), "a", func(context.Context) (string, error) { return "A", nil })
	require.NoError(t, err)
	b, err := g.Do(context.Background(), "b", func(context.Context) (string, error) { return "B", nil })
	require.NoError(t, err)
	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
}

func TestInFlight_CancelAllAbortsWaiters(t *testing.T) {
	var g InFlight[int]
	started := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		errCh <- err
	}()

	<-started
	g.CancelAll()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by CancelAll")
	}
	assert.Equal(t, 0, g.Pending())
}

func TestInFlight_CancelledFetchNeverSucceeds(t *testing.T) {
	var g InFlight[int]
	started := make(chan struct{})
	release := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 7, nil // ignores cancellation
		})
		errCh <- err
	}()

	<-started
	g.CancelAll()
	close(release)

	err := <-errCh
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInFlight_CallerContextDoesNotCancelSharedFetch(t *testing.T) {
	var g InFlight[int]
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fn := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return 9, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", fn)
		firstErr <- err
	}()
	<-started

	secondVal := make(chan int, 1)
	go func() {
		v, _ := g.Do(context.Background(), "k", fn)
		secondVal <- v
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, 9, <-secondVal)
}
