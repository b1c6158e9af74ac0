// Package sideeffects runs post-commit work (loyalty awards, notifications,
// training reports) on a background worker with retries. Delivery is
// at-least-once; a failed side effect never affects the committed transition
// that produced it.
package sideeffects

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"newsdesk/internal/middleware"
	"newsdesk/internal/observability"
)

// Task is one unit of post-commit work. Kind labels metrics and logs.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Dispatcher owns a bounded queue and a pool of workers draining it.
type Dispatcher struct {
	queue       chan Task
	workers     int
	maxAttempts int
	backoff     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher returns a dispatcher with the given queue size and worker
// count. Zero values get sane defaults.
func NewDispatcher(queueSize, workers, maxAttempts int, backoff time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Dispatcher{
		queue:       make(chan Task, queueSize),
		workers:     workers,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue adds a task to the queue. Returns false when the queue is full or
// the dispatcher is shutting down; the drop is logged and counted, never
// propagated to the caller.
func (d *Dispatcher) Enqueue(t Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		observability.SideEffectDropsTotal.WithLabelValues(t.Kind).Inc()
		middleware.Logger.Warn("side effect dropped: dispatcher closed", slog.String("kind", t.Kind))
		return false
	}
	select {
	case d.queue <- t:
		return true
	default:
		observability.SideEffectDropsTotal.WithLabelValues(t.Kind).Inc()
		middleware.Logger.Warn("side effect dropped: queue full", slog.String("kind", t.Kind))
		return false
	}
}

// Shutdown stops intake and waits for the queue to drain or the context to
// expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t Task) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err = t.Run(context.Background())
		if err == nil {
			return
		}
		if attempt < d.maxAttempts {
			observability.SideEffectRetriesTotal.WithLabelValues(t.Kind).Inc()
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	observability.SideEffectDropsTotal.WithLabelValues(t.Kind).Inc()
	middleware.Logger.Error("side effect failed after retries",
		slog.String("kind", t.Kind),
		slog.Int("attempts", d.maxAttempts),
		slog.String("error", err.Error()),
	)
}
