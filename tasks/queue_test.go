package tasks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/txix-open/isp-kit/log"
	"paygate-service/tasks"
)

func TestQueueRunsEnqueuedTasks(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	logger, err := log.New(log.WithLevel(log.ErrorLevel))
	require.NoError(err)

	queue := tasks.NewQueue(16, 2, time.Second, logger)
	go func() {
		_ = queue.Run(context.Background())
	}()

	counter := atomic.Int64{}
	for range 10 {
		queue.Enqueue("increment", func(ctx context.Context) error {
			counter.Add(1)
			return nil
		})
	}

	require.Eventually(func() bool {
		return counter.Load() == 10
	}, time.Second, 10*time.Millisecond)

	err = queue.Close()
	require.NoError(err)
}

func TestQueueDrainsOnClose(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	logger, err := log.New(log.WithLevel(log.ErrorLevel))
	require.NoError(err)

	queue := tasks.NewQueue(16, 1, time.Second, logger)
	counter := atomic.Int64{}
	for range 5 {
		queue.Enqueue("increment", func(ctx context.Context) error {
			counter.Add(1)
			return nil
		})
	}

	go func() {
		_ = queue.Run(context.Background())
	}()
	err = queue.Close()
	require.NoError(err)

	require.EqualValues(5, counter.Load())
}

func TestQueueKeepsTasksEnqueuedDuringClose(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	logger, err := log.New(log.WithLevel(log.ErrorLevel))
	require.NoError(err)

	queue := tasks.NewQueue(8, 2, time.Second, logger)
	go func() {
		_ = queue.Run(context.Background())
	}()

	counter := atomic.Int64{}
	wg := sync.WaitGroup{}
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Enqueue("increment", func(ctx context.Context) error {
				counter.Add(1)
				return nil
			})
		}()
	}

	err = queue.Close()
	require.NoError(err)
	wg.Wait()

	require.EqualValues(100, counter.Load())
}

func TestQueueExecutesInlineAfterClose(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	logger, err := log.New(log.WithLevel(log.ErrorLevel))
	require.NoError(err)

	queue := tasks.NewQueue(1, 1, time.Second, logger)
	go func() {
		_ = queue.Run(context.Background())
	}()
	err = queue.Close()
	require.NoError(err)

	done := false
	queue.Enqueue("inline", func(ctx context.Context) error {
		done = true
		return nil
	})
	require.True(done)
}
