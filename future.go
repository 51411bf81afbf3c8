package armsim

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Future is the completion handle of a submitted request. It is resolved
// exactly once, with either a value or an error.
type Future[T any] struct {
	id     uuid.UUID
	result T
	err    error
	done   chan struct{}
	once   sync.Once
}

func newFuture[T any](id uuid.UUID) *Future[T] {
	return &Future[T]{id: id, done: make(chan struct{})}
}

// ID is the request id carried by events about this request.
func (f *Future[T]) ID() uuid.UUID { return f.id }

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Test returns true if the future has a result.
func (f *Future[T]) Test() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) resolve(v T) {
	f.once.Do(func() {
		f.result = v
		close(f.done)
	})
}

func (f *Future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}
