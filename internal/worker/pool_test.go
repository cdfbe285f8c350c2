package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func(context.Context) { count.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int32(10), count.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	var running, peak atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 6)

	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit(func(context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			entered <- struct{}{}
			<-release
			running.Add(-1)
		}))
	}

	<-entered
	<-entered
	close(release)
	p.Wait()

	assert.Equal(t, int32(2), peak.Load())
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()

	require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
}

func TestPool_Close(t *testing.T) {
	p := NewPool(1, nil)

	cancelled := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))

	p.Close()
	<-cancelled

	assert.ErrorIs(t, p.Submit(func(context.Context) {}), ErrPoolClosed)
	p.Close()
}
