// Package worker provides the bounded in-process pool that runs background
// job executions.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrQueueFull is returned by Spawn when the pending queue has no room.
var ErrQueueFull = errors.New("worker queue full")

// Pool runs submitted tasks on a fixed number of goroutines with a bounded
// pending queue. Spawn never blocks the caller: admission control happens at
// submission time, not execution time.
type Pool struct {
	tasks chan func(ctx context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts a pool with the given concurrency and queue size.
func NewPool(concurrency, queueSize int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan func(ctx context.Context), queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("worker: task panicked: %v", r)
				}
			}()
			task(p.ctx)
		}()
	}
}

// Spawn enqueues a task for background execution. It returns ErrQueueFull
// immediately when the queue is at capacity.
func (p *Pool) Spawn(task func(ctx context.Context)) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks, cancels the context in-flight tasks observe,
// and waits for the workers to drain.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.cancel()
	})
	p.wg.Wait()
}
