package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag names written by the session recorder.
const (
	measurementDispatch = "session_dispatch"
	measurementPhase    = "session_phase"

	tagRobot   = "robot"
	tagTopic   = "topic"
	tagOutcome = "outcome"
	tagReason  = "reason"
	tagPhase   = "phase"
)

// RecordDispatch writes one point per inbound message handled by the
// session dispatcher.
//
// Parameters:
//   - topic: Topic the message arrived on
//   - toolName: Decoded tool name (empty when the payload was skipped)
//   - outcome: "dispatched" or "skipped"
//   - reason: Skip reason, empty when dispatched
func (c *Client) RecordDispatch(topic, toolName, outcome, reason string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(dispatchPoint(topic, toolName, outcome, reason, time.Now()))
}

// RecordPhase writes one point per session phase transition.
//
// Parameters:
//   - phase: Phase just entered
//   - elapsed: Time since the session started
//   - err: Terminal error when entering the failed phase, else nil
func (c *Client) RecordPhase(phase string, elapsed time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(phasePoint(phase, elapsed, err, time.Now()))
}

func dispatchPoint(topic, toolName, outcome, reason string, ts time.Time) *write.Point {
	tags := map[string]string{
		tagTopic:   topic,
		tagOutcome: outcome,
	}
	if reason != "" {
		tags[tagReason] = reason
	}

	fields := map[string]interface{}{
		"count": 1,
	}
	if toolName != "" {
		fields["tool_name"] = toolName
	}

	return write.NewPoint(measurementDispatch, tags, fields, ts)
}

func phasePoint(phase string, elapsed time.Duration, err error, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"elapsed_ms": elapsed.Milliseconds(),
		"failed":     err != nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	return write.NewPoint(measurementPhase, map[string]string{tagPhase: phase}, fields, ts)
}
