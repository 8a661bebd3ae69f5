package raster

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

func testDataset() *Dataset {
	return &Dataset{Width: 1, Height: 1, Bounds: testExtent, PixelWidth: 4, PixelHeight: 4, Values: []float32{1}}
}

func TestDatasetHandle_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	h := NewDatasetHandle(func(context.Context) (*Dataset, error) {
		calls.Add(1)
		<-release
		return testDataset(), nil
	})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := h.Get(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, ds)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	_, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, h.Loaded())
}

func TestDatasetHandle_FailedLoadIsRetried(t *testing.T) {
	var calls atomic.Int32
	h := NewDatasetHandle(func(context.Context) (*Dataset, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return testDataset(), nil
	})

	_, err := h.Get(context.Background())
	require.EqualError(t, err, "boom")
	assert.False(t, h.Loaded())

	ds, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ds)
}

func TestDatasetHandle_CancelAbortsLoad(t *testing.T) {
	started := make(chan struct{})
	h := NewDatasetHandle(func(ctx context.Context) (*Dataset, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.Get(context.Background())
		errCh <- err
	}()
	<-started
	h.Cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrDatasetCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Cancel")
	}
	assert.False(t, h.Loaded())
}

func TestDatasetHandle_CancelForgetsDataset(t *testing.T) {
	var calls atomic.Int32
	h := NewDatasetHandle(func(context.Context) (*Dataset, error) {
		calls.Add(1)
		return testDataset(), nil
	})

	_, err := h.Get(context.Background())
	require.NoError(t, err)
	h.Cancel()
	assert.False(t, h.Loaded())

	_, err = h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDatasetHandle_LastWaiterLeavingCancelsLoad(t *testing.T) {
	loadCtx := make(chan context.Context, 1)
	h := NewDatasetHandle(func(ctx context.Context) (*Dataset, error) {
		loadCtx <- ctx
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { _, err := h.Get(ctx1); errs <- err }()
	lctx := <-loadCtx
	go func() { _, err := h.Get(ctx2); errs <- err }()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.pending != nil && h.pending.waiters == 2
	}, time.Second, time.Millisecond)

	cancel1()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.NoError(t, lctx.Err(), "load must continue while a waiter remains")

	cancel2()
	assert.ErrorIs(t, <-errs, context.Canceled)
	require.Eventually(t, func() bool { return lctx.Err() != nil }, time.Second, time.Millisecond)
}

func TestDatasetHandle_CancelledContext(t *testing.T) {
	h := NewDatasetHandle(func(context.Context) (*Dataset, error) {
		t.Fatal("loader must not run")
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
