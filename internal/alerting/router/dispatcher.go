package router

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher runs deliveries off the request path. With zero workers every
// job runs inline in Submit.
type Dispatcher struct {
	jobs   chan func(context.Context)
	g      errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	inline bool
}

// NewDispatcher starts workers consuming a queue of queueSize jobs.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{ctx: ctx, cancel: cancel, inline: workers <= 0}
	if d.inline {
		return d
	}

	if queueSize <= 0 {
		queueSize = 256
	}
	d.jobs = make(chan func(context.Context), queueSize)
	for range workers {
		d.g.Go(func() error {
			for job := range d.jobs {
				job(d.ctx)
			}
			return nil
		})
	}
	return d
}

// Submit schedules job. A full queue spills into a dedicated goroutine rather
// than blocking the caller. Jobs submitted after Close run inline.
func (d *Dispatcher) Submit(job func(context.Context)) {
	d.mu.RLock()
	if d.inline || d.closed {
		d.mu.RUnlock()
		job(d.ctx)
		return
	}
	defer d.mu.RUnlock()

	select {
	case d.jobs <- job:
	default:
		d.g.Go(func() error {
			job(d.ctx)
			return nil
		})
	}
}

// Close stops accepting jobs and waits for queued ones. When ctx expires
// first, in-flight deliveries are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.jobs != nil {
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
