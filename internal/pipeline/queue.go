package pipeline

import (
	"errors"
	"sync"
)

var (
	// ErrFull is returned by TryPut when the queue is at capacity.
	ErrFull = errors.New("queue full")
	// ErrEmpty is returned by TryGet when the queue holds nothing.
	ErrEmpty = errors.New("queue empty")
)

// Queue is a bounded FIFO shared between exactly one stage boundary. There
// are no blocking variants; producers own the retry loop (see putWithRetry)
// so a stop request is never stranded behind a full queue.
type Queue[T any] struct {
	mu    sync.Mutex
	name  string
	cap   int
	items []T
}

// NewQueue returns an empty queue holding at most capacity items.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	return &Queue[T]{name: name, cap: capacity}
}

// Name returns the registry name the queue was created with.
func (q *Queue[T]) Name() string { return q.name }

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return q.cap }

// Len returns the current depth.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TryPut appends v, or returns ErrFull without blocking.
func (q *Queue[T]) TryPut(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return ErrFull
	}
	q.items = append(q.items, v)
	return nil
}

// TryGet pops the oldest item, or returns ErrEmpty without blocking.
func (q *Queue[T]) TryGet() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, ErrEmpty
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, nil
}

// Flush discards everything queued and returns the number of items dropped.
func (q *Queue[T]) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// queueRef is the type-erased view the monitoring tasks and the /queues
// endpoint use to walk the heterogeneous queue set.
type queueRef interface {
	Name() string
	Len() int
	Cap() int
	Flush() int
}
