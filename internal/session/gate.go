package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

// LifecycleGate turns the transport's push-style lifecycle events into
// bounded waits for the controlling goroutine.
//
// Thread Safety:
//   - Signal methods may be called from any number of event goroutines.
//   - Await methods are intended for the single coordinating goroutine.
type LifecycleGate struct {
	connected *Signal[mqtt.ConnectionSuccess]
	stopped   *Signal[mqtt.Stopped]

	failures   atomic.Int64
	violations atomic.Int64

	mu          sync.Mutex
	lastFailure error
}

// NewLifecycleGate returns a gate with both signals unresolved.
func NewLifecycleGate() *LifecycleGate {
	return &LifecycleGate{
		connected: NewSignal[mqtt.ConnectionSuccess]("connected"),
		stopped:   NewSignal[mqtt.Stopped]("stopped"),
	}
}

// SignalConnected resolves the connected transition.
// A second call returns ErrDuplicateSignal and counts as a violation.
func (g *LifecycleGate) SignalConnected(info mqtt.ConnectionSuccess) error {
	return g.resolve(g.connected.Resolve(info, nil))
}

// SignalStopped resolves the stopped transition.
// A second call returns ErrDuplicateSignal and counts as a violation.
func (g *LifecycleGate) SignalStopped(info mqtt.Stopped) error {
	return g.resolve(g.stopped.Resolve(info, nil))
}

func (g *LifecycleGate) resolve(err error) error {
	if err != nil {
		g.violations.Add(1)
	}
	return err
}

// SignalConnectionFailed records a failed attempt. It never resolves the
// connected wait; the coordinator keeps waiting until success or timeout.
func (g *LifecycleGate) SignalConnectionFailed(reason error) {
	g.failures.Add(1)
	g.mu.Lock()
	g.lastFailure = reason
	g.mu.Unlock()
}

// AwaitConnected waits for SignalConnected.
func (g *LifecycleGate) AwaitConnected(ctx context.Context, timeout time.Duration) (mqtt.ConnectionSuccess, error) {
	return g.connected.Await(ctx, timeout)
}

// AwaitStopped waits for SignalStopped.
func (g *LifecycleGate) AwaitStopped(ctx context.Context, timeout time.Duration) (mqtt.Stopped, error) {
	return g.stopped.Await(ctx, timeout)
}

// Connected reports whether the connected transition has fired.
func (g *LifecycleGate) Connected() bool { return g.connected.Resolved() }

// Stopped reports whether the stopped transition has fired.
func (g *LifecycleGate) Stopped() bool { return g.stopped.Resolved() }

// ConnectionFailures returns how many failures have been observed.
func (g *LifecycleGate) ConnectionFailures() int64 { return g.failures.Load() }

// Violations returns how many duplicate signals were rejected.
func (g *LifecycleGate) Violations() int64 { return g.violations.Load() }

// LastConnectionFailure returns the most recent failure, or nil.
func (g *LifecycleGate) LastConnectionFailure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFailure
}

// describeLastFailure formats the last failure for a timeout message.
func (g *LifecycleGate) describeLastFailure() string {
	err := g.LastConnectionFailure()
	if err == nil {
		return ""
	}
	return fmt.Sprintf(" (%d failed attempts, last: %v)", g.ConnectionFailures(), err)
}
