// Package worker runs invoke handlers off the engine's event loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of handler work. The context is cancelled when the pool closes.
type Task func(ctx context.Context)

// Pool runs tasks with bounded concurrency. Submit never blocks the caller.
type Pool struct {
	logger *slog.Logger
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger: logger,
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules task. Tasks wait for a free slot in their own goroutine.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		p.run(task)
	}()
	return nil
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				"error", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting tasks, cancels the shared context and waits for
// running tasks. Tasks still waiting for a slot are dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
