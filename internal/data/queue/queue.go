// Package queue is a bounded in-memory FIFO with batch draining, used to
// decouple producers from slow writers.
package queue

import (
	"context"
	"io"
	"sync"
	"time"
)

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// Bounded never blocks producers: Enqueue drops when the queue is full or
// closed.
type Bounded[T any] struct {
	ch     chan T
	mu     sync.RWMutex
	closed bool
}

func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bounded[T]{ch: make(chan T, capacity)}
}

func (q *Bounded[T]) Enqueue(item T) EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return EnqueueDropped
	}
	select {
	case q.ch <- item:
		return EnqueueAccepted
	default:
		return EnqueueDropped
	}
}

// DequeueBatch waits up to wait for a first item, then takes whatever else
// is immediately available up to maxItems. A closed, drained queue returns
// io.EOF, possibly together with the final items.
func (q *Bounded[T]) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]T, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]T, 0, maxItems)

	first, err := q.first(ctx, wait)
	if err != nil || first == nil {
		return nil, err
	}
	batch = append(batch, *first)

	for len(batch) < maxItems {
		select {
		case item, ok := <-q.ch:
			if !ok {
				return batch, io.EOF
			}
			batch = append(batch, item)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *Bounded[T]) first(ctx context.Context, wait time.Duration) (*T, error) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return &item, nil
	default:
	}
	if wait <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return &item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (q *Bounded[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *Bounded[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
