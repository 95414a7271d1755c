package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Signal is a one-shot, write-once, multi-read lifecycle event.
//
// Thread Safety:
//   - Resolve may race with any number of Await callers.
//   - After resolution every Await returns the stored outcome immediately.
type Signal[T any] struct {
	name string
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	value    T
	err      error
}

// NewSignal returns an unresolved signal. name appears in error messages.
func NewSignal[T any](name string) *Signal[T] {
	return &Signal[T]{name: name, done: make(chan struct{})}
}

// Resolve stores the outcome and releases all waiters.
// A second call leaves the stored outcome untouched and returns ErrDuplicateSignal.
func (s *Signal[T]) Resolve(value T, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return fmt.Errorf("%w: %s", ErrDuplicateSignal, s.name)
	}
	s.resolved = true
	s.value = value
	s.err = err
	close(s.done)
	return nil
}

// Resolved reports whether Resolve has been called.
func (s *Signal[T]) Resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed on resolution.
func (s *Signal[T]) Done() <-chan struct{} {
	return s.done
}

// Await blocks until the signal resolves, timeout elapses or ctx is done.
//
// Returns:
//   - The stored value and error when resolved
//   - ErrWaitTimeout when the timeout elapsed first
//   - ctx.Err() when the context ended first
func (s *Signal[T]) Await(ctx context.Context, timeout time.Duration) (T, error) {
	if s.Resolved() {
		return s.load()
	}

	var zero T
	if err := await(ctx, s.done, timeout); err != nil {
		if errors.Is(err, errElapsed) {
			return zero, fmt.Errorf("%w: %s after %v", ErrWaitTimeout, s.name, timeout)
		}
		return zero, err
	}
	return s.load()
}

func (s *Signal[T]) load() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err
}

// errElapsed is await's internal timeout marker; callers translate it.
var errElapsed = errors.New("session: wait elapsed")

// await blocks on done with a timeout and a context.
// A closed done channel wins over a simultaneous timeout or cancellation.
func await(ctx context.Context, done <-chan struct{}, timeout time.Duration) error {
	select {
	case <-done:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		select {
		case <-done:
			return nil
		default:
			return errElapsed
		}
	case <-ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return ctx.Err()
		}
	}
}
