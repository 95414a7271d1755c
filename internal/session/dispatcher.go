package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Queue receives dispatched commands. Implementations must be safe for
// concurrent use.
type Queue interface {
	// Enqueue adds a command by tool name and returns the queued action's ID.
	Enqueue(ctx context.Context, toolName string) (actionID string, err error)
}

// Outcome is the result class of one dispatch.
type Outcome int

const (
	// OutcomeDispatched means the command was enqueued.
	OutcomeDispatched Outcome = iota
	// OutcomeSkipped means nothing was enqueued; see Result.Reason.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// SkipReason says why a message produced no command.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipMalformedPayload SkipReason = "malformed_payload"
	SkipMissingToolName  SkipReason = "missing_tool_name"
	SkipEnqueueFailed    SkipReason = "enqueue_failed"
)

// Command is the inbound wire record. Other fields are ignored.
type Command struct {
	ToolName string `json:"toolName"`
}

// Result describes what Handle did with one message.
type Result struct {
	Outcome  Outcome
	Reason   SkipReason
	Topic    string
	ToolName string
	ActionID string

	// Count is the message counter after this arrival was recorded.
	Count uint64

	// Err holds the underlying cause for skipped messages, if any.
	Err error
}

// DefaultEnqueueTimeout bounds a single Enqueue call when Config.EnqueueTimeout
// is unset.
const DefaultEnqueueTimeout = 5 * time.Second

// Dispatcher decodes inbound bodies and forwards the named command to a Queue.
//
// Thread Safety: Handle is safe for concurrent use.
type Dispatcher struct {
	queue          Queue
	counter        *MessageCounter
	logger         Logger
	enqueueTimeout time.Duration

	// observe, if set, sees each result before the arrival is counted.
	observe func(Result)
}

// NewDispatcher creates a dispatcher that records every arrival on counter.
func NewDispatcher(queue Queue, counter *MessageCounter, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		queue:          queue,
		counter:        counter,
		logger:         logger,
		enqueueTimeout: DefaultEnqueueTimeout,
	}
}

// Handle processes one inbound message and never fails.
//
// The arrival is counted exactly once, after the dispatch attempt, whatever
// the outcome.
func (d *Dispatcher) Handle(ctx context.Context, topic string, payload []byte) (res Result) {
	defer func() { res.Count = d.counter.RecordOne() }()

	res = d.dispatch(ctx, topic, payload)
	if d.observe != nil {
		d.observe(res)
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, topic string, payload []byte) Result {
	res := Result{Topic: topic, Outcome: OutcomeSkipped}

	cmd, reason, err := decodeCommand(payload)
	if reason != SkipNone {
		res.Reason = reason
		res.Err = err
		if reason == SkipMalformedPayload {
			d.logger.Warn("invalid command payload", "topic", topic, "bytes", len(payload), "error", err)
		} else {
			d.logger.Info("no action specified", "topic", topic)
		}
		return res
	}
	res.ToolName = cmd.ToolName

	id, err := d.enqueue(ctx, cmd.ToolName)
	if err != nil {
		res.Reason = SkipEnqueueFailed
		res.Err = err
		d.logger.Error("enqueue failed", "topic", topic, "tool", cmd.ToolName, "error", err)
		return res
	}

	res.Outcome = OutcomeDispatched
	res.ActionID = id
	d.logger.Info("action queued", "topic", topic, "tool", cmd.ToolName, "action_id", id)
	return res
}

// enqueue calls the queue under the enqueue timeout. A panicking queue is
// reported as an error so the message is skipped rather than lost.
func (d *Dispatcher) enqueue(ctx context.Context, toolName string) (id string, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.enqueueTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			id, err = "", fmt.Errorf("%w: %v", ErrEnqueuePanicked, r)
		}
	}()
	return d.queue.Enqueue(ctx, toolName)
}

// decodeCommand extracts the command from a JSON body.
//
// A body that is not a JSON object, or whose toolName is not a string, is
// malformed. A null, absent or empty toolName is missing.
func decodeCommand(payload []byte) (Command, SkipReason, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Command{}, SkipMalformedPayload, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	raw, ok := fields["toolName"]
	if !ok || string(raw) == "null" {
		return Command{}, SkipMissingToolName, nil
	}

	var cmd Command
	if err := json.Unmarshal(raw, &cmd.ToolName); err != nil {
		return Command{}, SkipMalformedPayload, fmt.Errorf("%w: toolName: %w", ErrMalformedPayload, err)
	}
	if cmd.ToolName == "" {
		return Command{}, SkipMissingToolName, nil
	}
	return cmd, SkipNone, nil
}
