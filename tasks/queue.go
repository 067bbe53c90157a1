// Package tasks runs deferred work detached from the response path:
// cache population and hit-path refresh. Tasks enqueued before shutdown
// are guaranteed to run to completion.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/txix-open/isp-kit/log"
)

type task struct {
	name string
	do   func(ctx context.Context) error
}

type Queue struct {
	tasks   chan task
	stop    chan struct{}
	done    chan struct{}
	workers int
	timeout time.Duration
	logger  log.Logger

	closeOnce sync.Once
}

func NewQueue(size int, workers int, taskTimeout time.Duration, logger log.Logger) *Queue {
	return &Queue{
		tasks:   make(chan task, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		workers: workers,
		timeout: taskTimeout,
		logger:  logger,
	}
}

// Enqueue schedules a task. Task contexts are detached from the request,
// so client cancellation never affects them. Blocks when the queue is full;
// after Close the task is executed in the caller's goroutine instead of
// being dropped.
func (q *Queue) Enqueue(name string, do func(ctx context.Context) error) {
	t := task{name: name, do: do}
	select {
	case q.tasks <- t:
		// a send racing Close can land after the workers finished draining;
		// re-checking stop keeps every accepted task executed
		select {
		case <-q.stop:
			q.drain()
		default:
		}
	case <-q.stop:
		q.execute(t)
	}
}

func (q *Queue) Run(ctx context.Context) error {
	wg := sync.WaitGroup{}
	for range q.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work()
		}()
	}
	wg.Wait()
	close(q.done)
	return nil
}

func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.stop)
	})
	<-q.done
	return nil
}

func (q *Queue) work() {
	for {
		select {
		case t := <-q.tasks:
			q.execute(t)
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.execute(t)
		default:
			return
		}
	}
}

func (q *Queue) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := t.do(ctx)
	if err != nil {
		q.logger.Error(ctx, errors.WithMessagef(err, "background task '%s'", t.name))
	}
}
