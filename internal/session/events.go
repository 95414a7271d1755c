package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

var _ mqtt.Events = (*Coordinator)(nil)

// OnPublishReceived dispatches one inbound message.
func (c *Coordinator) OnPublishReceived(msg mqtt.Message) {
	c.logger.Debug("message received", "topic", msg.Topic, "sequence", msg.Sequence, "bytes", len(msg.Payload))
	c.dispatcher.Handle(c.dispatchCtx, msg.Topic, msg.Payload)
}

// observeDispatch updates counters and publishes a dispatch result. It runs
// before the arrival is counted, so everything here is visible once the
// inbound target is reached.
func (c *Coordinator) observeDispatch(res Result) {
	if res.Outcome == OutcomeDispatched {
		c.dispatched.Add(1)
		c.broadcast(ChannelDispatched, map[string]any{
			"topic":     res.Topic,
			"tool_name": res.ToolName,
			"action_id": res.ActionID,
		})
	} else {
		c.skipped.Add(1)
		payload := map[string]any{
			"topic":  res.Topic,
			"reason": string(res.Reason),
		}
		if res.Err != nil {
			payload["error"] = res.Err.Error()
		}
		c.broadcast(ChannelSkipped, payload)
	}

	if c.recorder != nil {
		c.recorder.RecordDispatch(res.Topic, res.ToolName, res.Outcome.String(), string(res.Reason))
	}
}

// OnConnectionSuccess resolves the connected signal.
func (c *Coordinator) OnConnectionSuccess(info mqtt.ConnectionSuccess) {
	if err := c.gate.SignalConnected(info); err != nil {
		c.logger.Error("transport reported connection success twice", "error", err)
	}
}

// OnConnectionFailure records the failure. The connected wait keeps going.
func (c *Coordinator) OnConnectionFailure(err error) {
	c.gate.SignalConnectionFailed(err)
	c.logger.Warn("connection failure",
		"error", fmt.Errorf("%w: %w", ErrConnectionFailureObserved, err),
		"failures", c.gate.ConnectionFailures(),
	)
}

// OnStopped resolves the stopped signal.
func (c *Coordinator) OnStopped(info mqtt.Stopped) {
	if err := c.gate.SignalStopped(info); err != nil {
		c.logger.Error("transport reported stopped twice", "error", err)
	}
}

// setPhase records a transition and publishes it.
func (c *Coordinator) setPhase(next Phase) {
	c.transition(next, nil)
}

// fail moves to PhaseFailed recording err.
func (c *Coordinator) fail(err error) {
	c.logger.Error("session failed", "error", err)
	c.transition(PhaseFailed, err)
}

func (c *Coordinator) transition(next Phase, err error) {
	now := time.Now()

	c.mu.Lock()
	prev := c.phase
	c.phase = next
	c.phaseSince = now
	started := c.startedAt
	c.mu.Unlock()

	c.logger.Debug("phase changed", "from", string(prev), "to", string(next))

	payload := map[string]any{
		"phase":    string(next),
		"previous": string(prev),
		"at":       now.UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	c.broadcast(ChannelPhase, payload)

	if c.recorder != nil {
		c.recorder.RecordPhase(string(next), now.Sub(started), err)
	}
}

func (c *Coordinator) broadcast(channel string, payload any) {
	if c.notifier != nil {
		c.notifier.Broadcast(channel, payload)
	}
}

// isCancellation reports whether err came from the run context ending.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
