package local

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_TaskExecution(t *testing.T) {
	p := NewPool(2)
	p.Start()

	var called int32
	require.NoError(t, p.Submit(context.Background(), func() { atomic.AddInt32(&called, 1) }))
	require.NoError(t, p.Submit(context.Background(), func() { atomic.AddInt32(&called, 1) }))

	// close and wait for tasks
	p.Close()
	require.Equal(t, int32(2), atomic.LoadInt32(&called))
}

func TestPool_CloseWaitsForLongTask(t *testing.T) {
	p := NewPool(1)
	p.Start()

	var done int32
	require.NoError(t, p.Submit(context.Background(), func() {
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
	}))

	p.Close()
	require.Equal(t, int32(1), atomic.LoadInt32(&done))
}

func TestPool_SubmitHonorsContext(t *testing.T) {
	p := NewPool(1)
	p.Start()
	defer p.Close()

	release := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The only worker is busy, so the second submit has nowhere to go.
	err := p.Submit(ctx, func() {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
