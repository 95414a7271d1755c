package session

import "time"

// Snapshot is a point-in-time view of a session for status endpoints.
type Snapshot struct {
	ClientID           string    `json:"client_id"`
	Topic              string    `json:"topic"`
	Phase              Phase     `json:"phase"`
	PhaseSince         time.Time `json:"phase_since"`
	StartedAt          time.Time `json:"started_at,omitempty"`
	Received           uint64    `json:"received"`
	ReceiveTarget      uint64    `json:"receive_target"`
	TargetReached      bool      `json:"target_reached"`
	PublishAttempts    uint64    `json:"publish_attempts"`
	PublishFailures    uint64    `json:"publish_failures"`
	PublishTarget      uint64    `json:"publish_target"`
	Dispatched         uint64    `json:"dispatched"`
	Skipped            uint64    `json:"skipped"`
	ConnectionFailures int64     `json:"connection_failures"`
	SignalViolations   int64     `json:"signal_violations"`
	Error              string    `json:"error,omitempty"`
}

// Snapshot returns the current session state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{
		ClientID:   c.cfg.ClientID,
		Topic:      c.cfg.Topic,
		Phase:      c.phase,
		PhaseSince: c.phaseSince,
		StartedAt:  c.startedAt,
	}
	if c.runErr != nil {
		snap.Error = c.runErr.Error()
	}
	c.mu.RUnlock()

	snap.Received = c.counter.Count()
	snap.ReceiveTarget = c.counter.Target()
	snap.TargetReached = c.counter.Reached()
	snap.PublishAttempts = c.publishAttempts.Load()
	snap.PublishFailures = c.publishFailures.Load()
	snap.PublishTarget = c.cfg.PublishCount
	snap.Dispatched = c.dispatched.Load()
	snap.Skipped = c.skipped.Load()
	snap.ConnectionFailures = c.gate.ConnectionFailures()
	snap.SignalViolations = c.gate.Violations()
	return snap
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}
