// Package worker moves queued motion readings into the session engine.
// A single consumer keeps readings in arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/stride/internal/adapters/mq/queue"
	"github.com/okian/stride/pkg/logger"
)

// Sink consumes readings in order.
type Sink interface {
	Submit(ctx context.Context, r queue.Reading) bool
}

// Queue defines how workers receive readings.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Reading
}

// Worker feeds readings to a Sink.
type Worker interface {
	// Run consumes readings until ctx is done, Shutdown is called or the
	// queue is closed and drained.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	processed atomic.Uint64
	steps     atomic.Uint64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Default().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	w.logger.Debug(ctx, "worker started", logger.String("name", w.name))
	readings := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-readings:
			if !ok {
				w.logger.Debug(ctx, "queue drained", logger.String("name", w.name), logger.Uint64("processed", w.processed.Load()))
				return
			}
			if w.sink.Submit(ctx, r) {
				w.steps.Add(1)
			}
			w.processed.Add(1)
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("name", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Processed returns the number of readings handed to the sink.
func (w *InMemoryWorker) Processed() uint64 { return w.processed.Load() }

// Steps returns how many processed readings produced a step.
func (w *InMemoryWorker) Steps() uint64 { return w.steps.Load() }
