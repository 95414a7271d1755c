package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/robotlink/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for a single robot session.
//
// Unlike a blocking connect, Start returns immediately and reports progress
// through Events: one OnConnectionSuccess per Start, OnConnectionFailure for
// every failed attempt or dropped link, and one OnStopped after Stop.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	broker  string

	events   Events
	eventsMu sync.RWMutex

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	// connects counts successful CONNACKs, reconnects included.
	connects atomic.Int64
	sequence atomic.Uint64

	started   atomic.Bool
	stopOnce  sync.Once
	loopDone  chan struct{}
	stopDone  chan struct{}
	runCtx    context.Context
	cancelRun context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// New builds a client from configuration without connecting.
//
// Parameters:
//   - cfg: MQTT configuration (placeholders already expanded)
//
// Returns:
//   - *Client: Client ready for Start
//   - error: If TLS material cannot be loaded
func New(cfg config.MQTTConfig) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		runCtx:        runCtx,
		cancelRun:     cancel,
		cfg:           cfg,
		options:       opts,
		broker:        brokerURL(cfg),
		subscriptions: make(map[string]byte),
		loopDone:      make(chan struct{}),
		stopDone:      make(chan struct{}),
		logger:        noopLogger{},
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.getLogger().Info("mqtt reconnecting", "broker", c.broker)
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Start begins connecting in the background and delivers notifications to events.
//
// Failed attempts are retried every reconnect initial delay until the first
// success or Stop. Calling Start twice reports ErrAlreadyStarted through
// OnConnectionFailure and otherwise does nothing.
func (c *Client) Start(events Events) {
	if !c.started.CompareAndSwap(false, true) {
		if events != nil {
			events.OnConnectionFailure(ErrAlreadyStarted)
		}
		return
	}

	c.eventsMu.Lock()
	c.events = events
	c.eventsMu.Unlock()

	go c.connectLoop(c.runCtx)
}

// connectLoop drives the initial connection. After the first success paho's
// auto-reconnect takes over.
func (c *Client) connectLoop(ctx context.Context) {
	defer close(c.loopDone)

	delay := time.Duration(c.cfg.Reconnect.InitialDelay) * time.Second
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; ; attempt++ {
		token := c.client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			return
		}

		err := token.Error()
		if err == nil {
			if ctx.Err() == nil {
				c.connectionEstablished(token)
			}
			return
		}

		c.getLogger().Warn("mqtt connect attempt failed",
			"broker", c.broker,
			"attempt", attempt,
			"error", err,
		)
		if ev := c.getEvents(); ev != nil {
			ev.OnConnectionFailure(fmt.Errorf("%w: attempt %d: %w", ErrConnectionFailed, attempt, err))
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// connectionEstablished records the first connection and emits OnConnectionSuccess.
func (c *Client) connectionEstablished(token pahomqtt.Token) {
	info := ConnectionSuccess{Broker: c.broker, ClientID: c.cfg.Broker.ClientID}
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		info.SessionPresent = ct.SessionPresent()
		info.ReturnCode = ct.ReturnCode()
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.getLogger().Info("mqtt connected",
		"broker", c.broker,
		"client_id", info.ClientID,
		"session_present", info.SessionPresent,
	)
	if ev := c.getEvents(); ev != nil {
		ev.OnConnectionSuccess(info)
	}
}

// handleConnect is called by paho on every established connection.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	if n := c.connects.Add(1); n > 1 {
		c.getLogger().Info("mqtt reconnected", "broker", c.broker, "connections", n)
		c.restoreSubscriptions()
	}

	c.publishOnlineStatus()
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.getLogger().Warn("mqtt connection lost", "broker", c.broker, "error", err)
	if ev := c.getEvents(); ev != nil {
		ev.OnConnectionFailure(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, qos := range c.subscriptions {
		// Errors surface as a missing subscription; nothing to retry here.
		c.client.Subscribe(topic, qos, c.wrapHandler())
	}
}

// publishOnlineStatus publishes the retained online status, if configured.
func (c *Client) publishOnlineStatus() {
	if c.cfg.StatusTopic == "" {
		return
	}
	c.client.Publish(c.cfg.StatusTopic, 1, true, buildOnlinePayload(c.cfg.Broker.ClientID))
}

// Stop requests shutdown. It returns immediately; OnStopped fires once the
// client has disconnected. Only the first call has any effect.
//
// It performs:
//  1. Cancels any pending connect attempt
//  2. Publishes graceful offline status (different from the LWT)
//  3. Disconnects with a quiesce period for in-flight operations
//  4. Emits OnStopped
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		go c.shutdown("stop requested")
	})
}

func (c *Client) shutdown(reason string) {
	defer close(c.stopDone)

	c.cancelRun()
	if c.started.Load() {
		<-c.loopDone
	}

	if c.IsConnected() && c.cfg.StatusTopic != "" {
		token := c.client.Publish(c.cfg.StatusTopic, 1, true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if ev := c.getEvents(); ev != nil {
		ev.OnStopped(Stopped{Reason: reason, At: time.Now()})
	}
}

// Close stops the client and waits up to timeout for the disconnect to finish.
// It is safe to call after Stop and on a client that was never started.
func (c *Client) Close(timeout time.Duration) error {
	if c.client == nil {
		return nil
	}
	c.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.stopDone:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: close after %v", ErrTimeout, timeout)
	}
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.started.Load() {
		return ErrNotStarted
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetLogger sets a logger for connection and handler diagnostics.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) getEvents() Events {
	c.eventsMu.RLock()
	defer c.eventsMu.RUnlock()
	return c.events
}

// wrapHandler returns the paho handler that forwards messages to Events,
// with panic recovery.
func (c *Client) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.getLogger().Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		ev := c.getEvents()
		if ev == nil {
			c.getLogger().Warn("MQTT message dropped: no event sink", "topic", msg.Topic())
			return
		}
		ev.OnPublishReceived(newMessage(msg, &c.sequence))
	}
}
