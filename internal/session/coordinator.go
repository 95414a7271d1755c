package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

// Transport is the MQTT client the coordinator drives.
// *mqtt.Client satisfies it.
type Transport interface {
	Start(events mqtt.Events)
	Stop()
	Subscribe(topic string, qos byte) *mqtt.Token
	Unsubscribe(topic string) *mqtt.Token
	Publish(topic string, payload []byte, qos byte) *mqtt.Token
}

// Notifier is the interface for broadcasting live session events.
type Notifier interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Recorder persists session telemetry.
type Recorder interface {
	RecordDispatch(topic, toolName, outcome, reason string)
	RecordPhase(phase string, elapsed time.Duration, err error)
}

// Logger defines the logging interface used by the session package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Live event channels.
const (
	ChannelPhase      = "session.phase"
	ChannelDispatched = "action.dispatched"
	ChannelSkipped    = "message.skipped"
)

// Options configures a Coordinator. Transport and Queue are required.
type Options struct {
	Config    Config
	Transport Transport
	Queue     Queue

	// Logger is optional structured logger.
	Logger Logger

	// Notifier is optional; nil disables live events.
	Notifier Notifier

	// Recorder is optional; nil disables telemetry.
	Recorder Recorder
}

// Coordinator runs one session: connect, subscribe, publish, wait for
// messages, unsubscribe and stop. It implements mqtt.Events.
//
// Thread Safety:
//   - Run is called once from a single goroutine.
//   - Event methods and Snapshot are safe for concurrent use.
type Coordinator struct {
	cfg        Config
	transport  Transport
	gate       *LifecycleGate
	counter    *MessageCounter
	dispatcher *Dispatcher
	logger     Logger
	notifier   Notifier
	recorder   Recorder

	started atomic.Bool

	// dispatchCtx is independent of Run's ctx; it ends when Run returns.
	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc

	publishAttempts atomic.Uint64
	publishFailures atomic.Uint64
	dispatched      atomic.Uint64
	skipped         atomic.Uint64

	mu         sync.RWMutex
	phase      Phase
	phaseSince time.Time
	startedAt  time.Time
	runErr     error
}

// NewCoordinator validates opts and builds an idle coordinator.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("%w: queue is required", ErrInvalidConfig)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	counter := NewMessageCounter(opts.Config.ReceiveCount)
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())

	c := &Coordinator{
		cfg:            opts.Config,
		transport:      opts.Transport,
		gate:           NewLifecycleGate(),
		counter:        counter,
		dispatcher:     NewDispatcher(opts.Queue, counter, logger),
		logger:         logger,
		notifier:       opts.Notifier,
		recorder:       opts.Recorder,
		dispatchCtx:    dispatchCtx,
		dispatchCancel: dispatchCancel,
		phase:          PhaseIdle,
		phaseSince:     time.Now(),
	}
	c.dispatcher.observe = c.observeDispatch
	if opts.Config.EnqueueTimeout > 0 {
		c.dispatcher.enqueueTimeout = opts.Config.EnqueueTimeout
	}
	return c, nil
}

// Run executes the session.
//
// Steps:
//  1. Start the transport and wait for the connected signal
//  2. Subscribe at QoS 1 and wait for the SUBACK
//  3. Publish the configured message, if any
//  4. Wait for the inbound target (a timeout here is normal)
//  5. Unsubscribe and wait for the UNSUBACK
//  6. Stop the transport and wait for the stopped signal
//
// Any timeout or rejection ends the run at that step without attempting
// later ones. Cancelling ctx interrupts the current wait and goes straight
// to step 6; Run then returns an error wrapping ctx.Err().
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer c.dispatchCancel()

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	err := c.run(ctx)
	if err != nil && !isCancellation(err) {
		c.fail(err)
	}
	if err != nil {
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
	}
	return err
}

func (c *Coordinator) run(ctx context.Context) error {
	timeout := c.cfg.Timeout

	c.setPhase(PhaseConnecting)
	c.logger.Info("connecting", "endpoint", c.cfg.Endpoint, "port", c.cfg.Port, "client_id", c.cfg.ClientID)
	c.transport.Start(c)

	info, err := c.gate.AwaitConnected(ctx, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx)
		}
		return fmt.Errorf("%w: after %v%s", ErrConnectTimeout, timeout, c.gate.describeLastFailure())
	}
	c.setPhase(PhaseConnected)
	c.logger.Info("connection established", "broker", info.Broker, "session_present", info.SessionPresent)

	c.setPhase(PhaseSubscribing)
	c.logger.Info("subscribing", "topic", c.cfg.Topic)
	ack, err := c.transport.Subscribe(c.cfg.Topic, QoSAtLeastOnce).Wait(ctx, timeout)
	if err := classifyAck(ctx, ack, err, ErrSubscribeTimeout, ErrSubscribeRejected); err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx)
		}
		return err
	}
	c.setPhase(PhaseSubscribed)
	c.logger.Info("subscribed", "topic", c.cfg.Topic, "reason_codes", ack.ReasonCodes)

	if len(c.cfg.Message) > 0 {
		c.setPhase(PhasePublishing)
		if err := c.publishLoop(ctx); err != nil {
			return c.abort(ctx)
		}
	}

	c.setPhase(PhaseAwaitingMessages)
	reached, err := c.counter.AwaitTarget(ctx, timeout)
	if err != nil {
		return c.abort(ctx)
	}
	c.logger.Info("message wait finished",
		"received", c.counter.Count(),
		"target", c.counter.Target(),
		"target_reached", reached,
	)

	c.setPhase(PhaseUnsubscribing)
	c.logger.Info("unsubscribing", "topic", c.cfg.Topic)
	ack, err = c.transport.Unsubscribe(c.cfg.Topic).Wait(ctx, timeout)
	if err := classifyAck(ctx, ack, err, ErrUnsubscribeTimeout, ErrUnsubscribeRejected); err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx)
		}
		return err
	}
	c.logger.Info("unsubscribed", "topic", c.cfg.Topic)

	return c.stop()
}

// classifyAck maps a token outcome onto the step's timeout and rejection errors.
func classifyAck(ctx context.Context, ack mqtt.Ack, err, timeoutErr, rejectErr error) error {
	switch {
	case err == nil && !ack.Failed():
		return nil
	case err == nil:
		return fmt.Errorf("%w: reason codes %v", rejectErr, ack.ReasonCodes)
	case ctx.Err() != nil:
		return err
	case errors.Is(err, mqtt.ErrTimeout):
		return fmt.Errorf("%w: %w", timeoutErr, err)
	default:
		return fmt.Errorf("%w: %w", rejectErr, err)
	}
}

// publishLoop publishes the message PublishCount times, or until ctx ends
// when PublishCount is 0. A failed attempt is logged and the loop goes on.
func (c *Coordinator) publishLoop(ctx context.Context) error {
	if c.cfg.PublishCount == 0 {
		c.logger.Info("publishing until cancelled", "topic", c.cfg.Topic)
	} else {
		c.logger.Info("publishing", "topic", c.cfg.Topic, "count", c.cfg.PublishCount)
	}

	for n := uint64(1); c.cfg.PublishCount == 0 || n <= c.cfg.PublishCount; n++ {
		c.publishAttempts.Add(1)
		_, err := c.transport.Publish(c.cfg.Topic, c.cfg.Message, c.cfg.PublishQoS).Wait(ctx, c.cfg.Timeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.publishFailures.Add(1)
			c.logger.Warn("publish failed", "topic", c.cfg.Topic, "attempt", n, "error", err)
		} else {
			c.logger.Debug("published", "topic", c.cfg.Topic, "attempt", n)
		}

		if err := await(ctx, nil, c.cfg.PublishInterval); err != nil && !errors.Is(err, errElapsed) {
			return err
		}
	}
	return nil
}

// abort handles cancellation: it skips to the stop sequence with a fresh
// context and reports the cancellation. A failed stop is reported instead,
// without the cancellation, so callers do not mistake it for a clean exit.
func (c *Coordinator) abort(ctx context.Context) error {
	c.mu.RLock()
	phase := c.phase
	c.mu.RUnlock()

	cause := fmt.Errorf("session cancelled during %s: %w", phase, ctx.Err())
	c.logger.Warn("session cancelled, stopping", "phase", string(phase))

	if err := c.stop(); err != nil {
		return fmt.Errorf("%w (cancelled during %s)", err, phase)
	}
	return cause
}

// stop asks the transport to stop and waits for the stopped signal.
// The wait ignores the run context: cancellation leads here.
func (c *Coordinator) stop() error {
	c.setPhase(PhaseStopping)
	c.logger.Info("stopping client")
	c.transport.Stop()

	info, err := c.gate.AwaitStopped(context.Background(), c.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("%w: after %v", ErrStopTimeout, c.cfg.Timeout)
	}

	c.setPhase(PhaseStopped)
	c.logger.Info("client stopped", "reason", info.Reason)
	return nil
}
