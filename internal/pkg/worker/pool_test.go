package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsAllJobs(t *testing.T) {
	p := NewPool(2, zap.NewNop())
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit("count", func(ctx context.Context) { n.Add(1) }))
	}
	p.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, zap.NewNop())
	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		_ = p.Submit("slow", func(ctx context.Context) {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
	}
	p.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	p := NewPool(1, zap.NewNop())
	release := make(chan struct{})
	_ = p.Submit("hold", func(ctx context.Context) { <-release })

	start := time.Now()
	require.NoError(t, p.Submit("queued", func(ctx context.Context) {}))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	close(release)
	p.Wait()
}

func TestPool_RecoversPanic(t *testing.T) {
	p := NewPool(1, zap.NewNop())
	_ = p.Submit("boom", func(ctx context.Context) { panic("boom") })
	var ran atomic.Bool
	_ = p.Submit("after", func(ctx context.Context) { ran.Store(true) })
	p.Wait()
	assert.True(t, ran.Load())
}

func TestPool_Shutdown(t *testing.T) {
	p := NewPool(1, zap.NewNop())
	var ran atomic.Bool
	_ = p.Submit("job", func(ctx context.Context) { ran.Store(true) })

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, ran.Load())
	assert.ErrorIs(t, p.Submit("late", func(ctx context.Context) {}), ErrPoolClosed)
}
