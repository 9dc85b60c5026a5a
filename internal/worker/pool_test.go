package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	ran := map[string]bool{}
	var tasks []Task
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("task-%d", i)
		tasks = append(tasks, Task{
			ID: id,
			Run: func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				ran[id] = true
				return nil
			},
		})
	}

	outcomes := NewPool(2, nil).Run(context.Background(), tasks)
	require.Len(t, outcomes, 7)
	require.Len(t, ran, 7)
	for _, out := range outcomes {
		require.NoError(t, out.Err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak int32
	var tasks []Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, Task{
			ID: fmt.Sprintf("task-%d", i),
			Run: func(context.Context) error {
				cur := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}

	NewPool(2, nil).Run(context.Background(), tasks)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolTaskErrorDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var count int32
	tasks := []Task{
		{ID: "bad", Run: func(context.Context) error { return boom }},
		{ID: "good", Run: func(context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		}},
	}

	outcomes := NewPool(1, nil).Run(context.Background(), tasks)
	require.Len(t, outcomes, 2)
	require.Equal(t, int32(1), atomic.LoadInt32(&count))

	byID := map[string]error{}
	for _, out := range outcomes {
		byID[out.ID] = out.Err
	}
	require.ErrorIs(t, byID["bad"], boom)
	require.NoError(t, byID["good"])
}

func TestPoolCancelledContextDrainsTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewPool(2, nil).Run(ctx, []Task{
		{ID: "a", Run: func(context.Context) error { return nil }},
		{ID: "b", Run: func(context.Context) error { return nil }},
	})
	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		require.ErrorIs(t, out.Err, context.Canceled)
	}
}
