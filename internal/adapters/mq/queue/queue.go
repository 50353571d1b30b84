// Package queue buffers motion readings between ingestion and the session
// engine. Readings leave the queue in the order they entered it.
package queue

import (
	"context"
	"sync"

	"github.com/okian/stride/internal/domain/motion"
	"github.com/okian/stride/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Reading is the payload type flowing through the queue.
type Reading = motion.Reading

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch of readings. Either the whole batch is queued or
	// none of it is.
	Enqueue(ctx context.Context, batch ...Reading) error

	// Dequeue returns a channel that receives readings until the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Reading

	Len() int
	Capacity() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	readings chan Reading
	capacity int

	mu     sync.Mutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.readings = make(chan Reading, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds batch to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, batch ...Reading) error {
	// Holding the lock for the whole batch keeps concurrent batches from interleaving.
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}
	if len(q.readings)+len(batch) > q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrFull
	}

	for _, r := range batch {
		q.readings <- r
		metrics.RecordQueueEnqueue()
	}
	q.updateMetrics()
	return nil
}

// Dequeue returns a channel that receives readings as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Reading {
	out := make(chan Reading)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-q.readings:
				if !ok {
					return
				}
				select {
				case out <- r:
					metrics.RecordQueueDequeue()
					q.updateMetrics()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) updateMetrics() {
	size := len(q.readings)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Len returns the current number of queued readings.
func (q *InMemoryQueue) Len() int { return len(q.readings) }

// Capacity returns the maximum number of queued readings.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting readings. Queued readings are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.readings)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
