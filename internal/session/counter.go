package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// MessageCounter counts inbound messages and signals once a target is reached.
//
// A target of 0 never signals; AwaitTarget then always runs to its timeout.
// Once reached, completion is never cleared.
type MessageCounter struct {
	target uint64
	count  atomic.Uint64
	done   chan struct{}
}

// NewMessageCounter returns a counter for target messages (0 = unbounded).
func NewMessageCounter(target uint64) *MessageCounter {
	return &MessageCounter{target: target, done: make(chan struct{})}
}

// RecordOne counts one arrival and returns the new total.
func (m *MessageCounter) RecordOne() uint64 {
	n := m.count.Add(1)
	// Add hands out each value exactly once, so only one caller sees n == target.
	if m.target > 0 && n == m.target {
		close(m.done)
	}
	return n
}

// Count returns the number of arrivals so far.
func (m *MessageCounter) Count() uint64 { return m.count.Load() }

// Target returns the configured target.
func (m *MessageCounter) Target() uint64 { return m.target }

// Reached reports whether the target has been hit.
func (m *MessageCounter) Reached() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// AwaitTarget blocks until the target is reached or timeout elapses.
//
// Returns:
//   - (true, nil) when the target was reached
//   - (false, nil) when the timeout elapsed, the normal outcome for target 0
//   - (false, ctx.Err()) when ctx ended first
func (m *MessageCounter) AwaitTarget(ctx context.Context, timeout time.Duration) (bool, error) {
	err := await(ctx, m.done, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errElapsed):
		return false, nil
	default:
		return false, err
	}
}
