package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

func newTestCoordinator(t *testing.T, cfg Config, transport Transport, queue Queue) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Options{Config: cfg, Transport: transport, Queue: queue})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	return c
}

func sendPayloads(payloads ...string) func(mqtt.Events) {
	return func(ev mqtt.Events) {
		for i, p := range payloads {
			ev.OnPublishReceived(mqtt.Message{
				Topic:    "robots/rover-07/commands",
				Payload:  []byte(p),
				QoS:      1,
				Sequence: uint64(i + 1),
			})
		}
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestCoordinator_TargetReachedBeforeTimeout(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ReceiveCount = 3
	cfg.Timeout = 2 * time.Second

	transport := newFakeTransport()
	transport.afterSubscribe = sendPayloads(
		`{"toolName":"gripper.open"}`,
		`{"toolName":"arm.home"}`,
		`{"toolName":"gripper.close"}`,
	)
	queue := &memQueue{}
	coord := newTestCoordinator(t, cfg, transport, queue)

	var receivedAtUnsubscribe uint64
	transport.unsubscribeToken = func() *mqtt.Token {
		receivedAtUnsubscribe = coord.Snapshot().Received
		return mqtt.CompletedToken(nil)
	}

	start := time.Now()
	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed >= cfg.Timeout {
		t.Errorf("Run() took %v, want the target to end the wait early", elapsed)
	}
	want := []string{"gripper.open", "arm.home", "gripper.close"}
	if got := queue.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("enqueued %v, want %v", got, want)
	}
	if receivedAtUnsubscribe != 3 {
		t.Errorf("received at unsubscribe = %d, want 3", receivedAtUnsubscribe)
	}

	snap := coord.Snapshot()
	if snap.Phase != PhaseStopped || !snap.TargetReached || snap.Dispatched != 3 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestCoordinator_ZeroTargetWaitsOutTimeout(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 100 * time.Millisecond

	transport := newFakeTransport()
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	var waited time.Duration
	start := time.Now()
	transport.unsubscribeToken = func() *mqtt.Token {
		waited = time.Since(start)
		return mqtt.CompletedToken(nil)
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil for an expected inbound timeout", err)
	}

	if waited < cfg.Timeout {
		t.Errorf("unsubscribed after %v, want at least %v", waited, cfg.Timeout)
	}
	calls := transport.Calls()
	if indexOf(calls, "unsubscribe:"+cfg.Topic) < 0 || indexOf(calls, "stop") < 0 {
		t.Errorf("calls = %v, want unsubscribe and stop", calls)
	}
	if coord.Phase() != PhaseStopped {
		t.Errorf("Phase() = %s, want stopped", coord.Phase())
	}
}

func TestCoordinator_PayloadWithoutToolNameSkipped(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ReceiveCount = 1

	transport := newFakeTransport()
	transport.afterSubscribe = sendPayloads(`{"not_tool":"x"}`)
	queue := &memQueue{}
	coord := newTestCoordinator(t, cfg, transport, queue)

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(queue.Names()) != 0 {
		t.Errorf("enqueued %v, want nothing", queue.Names())
	}
	snap := coord.Snapshot()
	if snap.Received != 1 || snap.Skipped != 1 || snap.Dispatched != 0 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestCoordinator_ConnectTimeout(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	transport.connect = false
	transport.failuresFirst = 2
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	err := coord.Run(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("Run() error = %v, want ErrConnectTimeout", err)
	}

	calls := transport.Calls()
	if countOf(calls, "subscribe") != 0 {
		t.Errorf("calls = %v, want no subscribe", calls)
	}
	if indexOf(calls, "stop") >= 0 {
		t.Errorf("calls = %v, want no later phases after a terminal error", calls)
	}
	snap := coord.Snapshot()
	if snap.Phase != PhaseFailed || snap.Error == "" {
		t.Errorf("Snapshot() = %+v, want failed with error", snap)
	}
	if snap.ConnectionFailures != 2 {
		t.Errorf("ConnectionFailures = %d, want 2", snap.ConnectionFailures)
	}
}

func TestCoordinator_BoundedPublishLoop(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Message = []byte("Hello World")
	cfg.PublishCount = 2
	cfg.PublishInterval = 30 * time.Millisecond
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	notifier := &recordingNotifier{}
	coord, err := NewCoordinator(Options{Config: cfg, Transport: transport, Queue: &memQueue{}, Notifier: notifier})
	if err != nil {
		t.Fatal(err)
	}

	var publishesAtUnsubscribe int
	transport.unsubscribeToken = func() *mqtt.Token {
		publishesAtUnsubscribe = len(transport.PublishTimes())
		return mqtt.CompletedToken(nil)
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	times := transport.PublishTimes()
	if len(times) != 2 {
		t.Fatalf("publish attempts = %d, want 2", len(times))
	}
	if gap := times[1].Sub(times[0]); gap < cfg.PublishInterval {
		t.Errorf("publish gap = %v, want at least %v", gap, cfg.PublishInterval)
	}
	if publishesAtUnsubscribe != 2 {
		t.Errorf("publishes at unsubscribe = %d, want 2", publishesAtUnsubscribe)
	}

	phases := notifier.Phases()
	pub, wait := indexOf(phases, string(PhasePublishing)), indexOf(phases, string(PhaseAwaitingMessages))
	if pub < 0 || wait < 0 || pub > wait {
		t.Errorf("phases = %v, want publishing before awaiting_messages", phases)
	}
}

// =============================================================================
// Ordering
// =============================================================================

func TestCoordinator_SubscribeOnlyAfterConnected(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	transport.failuresFirst = 3
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := transport.Calls()
	if indexOf(calls, "subscribe-before-connected") >= 0 {
		t.Fatalf("calls = %v: subscribe issued before connected", calls)
	}
	connected, subscribe := indexOf(calls, "connected"), indexOf(calls, "subscribe:"+cfg.Topic)
	if connected < 0 || subscribe < connected {
		t.Errorf("calls = %v, want connected before subscribe", calls)
	}
	if coord.Snapshot().ConnectionFailures != 3 {
		t.Errorf("ConnectionFailures = %d, want 3", coord.Snapshot().ConnectionFailures)
	}
}

func TestCoordinator_PhaseSequence(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Message = []byte("Hello World")
	cfg.PublishCount = 1
	cfg.ReceiveCount = 1

	transport := newFakeTransport()
	transport.afterSubscribe = sendPayloads(`{"toolName":"gripper.open"}`)
	notifier := &recordingNotifier{}
	recorder := &recordingRecorder{}
	coord, err := NewCoordinator(Options{
		Config:    cfg,
		Transport: transport,
		Queue:     &memQueue{},
		Notifier:  notifier,
		Recorder:  recorder,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"connecting", "connected", "subscribing", "subscribed", "publishing",
		"awaiting_messages", "unsubscribing", "stopping", "stopped",
	}
	if got := notifier.Phases(); !reflect.DeepEqual(got, want) {
		t.Errorf("phases = %v, want %v", got, want)
	}
	if notifier.Count(ChannelDispatched) != 1 {
		t.Errorf("dispatched broadcasts = %d, want 1", notifier.Count(ChannelDispatched))
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !reflect.DeepEqual(recorder.phases, want) {
		t.Errorf("recorded phases = %v", recorder.phases)
	}
	if len(recorder.dispatches) != 1 || recorder.dispatches[0] != "dispatched:gripper.open" {
		t.Errorf("recorded dispatches = %v", recorder.dispatches)
	}
}

// =============================================================================
// Failures
// =============================================================================

func TestCoordinator_StepFailures(t *testing.T) {
	never := func() *mqtt.Token { return mqtt.NewToken() }

	tests := []struct {
		name          string
		setup         func(*fakeTransport)
		wantErr       error
		wantCalled    string
		wantNotCalled string
	}{
		{
			name:          "subscribe refused by broker",
			setup:         func(f *fakeTransport) { f.subscribeToken = func() *mqtt.Token { return ackToken(0x80) } },
			wantErr:       ErrSubscribeRejected,
			wantNotCalled: "unsubscribe",
		},
		{
			name: "subscribe transport error",
			setup: func(f *fakeTransport) {
				f.subscribeToken = func() *mqtt.Token { return mqtt.CompletedToken(mqtt.ErrSubscribeFailed) }
			},
			wantErr:       ErrSubscribeRejected,
			wantNotCalled: "unsubscribe",
		},
		{
			name:          "subscribe never acknowledged",
			setup:         func(f *fakeTransport) { f.subscribeToken = never },
			wantErr:       ErrSubscribeTimeout,
			wantNotCalled: "unsubscribe",
		},
		{
			name:          "unsubscribe never acknowledged",
			setup:         func(f *fakeTransport) { f.unsubscribeToken = never },
			wantErr:       ErrUnsubscribeTimeout,
			wantCalled:    "unsubscribe",
			wantNotCalled: "stop",
		},
		{
			name: "unsubscribe error",
			setup: func(f *fakeTransport) {
				f.unsubscribeToken = func() *mqtt.Token { return mqtt.CompletedToken(mqtt.ErrUnsubscribeFailed) }
			},
			wantErr:       ErrUnsubscribeRejected,
			wantNotCalled: "stop",
		},
		{
			name:       "stopped never reported",
			setup:      func(f *fakeTransport) { f.noStopped = true },
			wantErr:    ErrStopTimeout,
			wantCalled: "stop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSessionConfig()
			cfg.Timeout = 50 * time.Millisecond

			transport := newFakeTransport()
			tt.setup(transport)
			coord := newTestCoordinator(t, cfg, transport, &memQueue{})

			err := coord.Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}

			calls := transport.Calls()
			if tt.wantCalled != "" && countOf(calls, tt.wantCalled) == 0 {
				t.Errorf("calls = %v, want %s", calls, tt.wantCalled)
			}
			if tt.wantNotCalled != "" && countOf(calls, tt.wantNotCalled) != 0 {
				t.Errorf("calls = %v, want no %s", calls, tt.wantNotCalled)
			}
			if coord.Phase() != PhaseFailed {
				t.Errorf("Phase() = %s, want failed", coord.Phase())
			}
		})
	}
}

func TestCoordinator_PublishFailureDoesNotAbortLoop(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Message = []byte("Hello World")
	cfg.PublishCount = 3
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	transport.publishToken = func(n int) *mqtt.Token {
		if n == 1 {
			return mqtt.CompletedToken(fmt.Errorf("%w: not authorized", mqtt.ErrPublishFailed))
		}
		return mqtt.CompletedToken(nil)
	}
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := coord.Snapshot()
	if snap.PublishAttempts != 3 || snap.PublishFailures != 1 {
		t.Errorf("attempts=%d failures=%d, want 3/1", snap.PublishAttempts, snap.PublishFailures)
	}
}

func TestCoordinator_DuplicateConnectedSignalCounted(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})
	transport.afterSubscribe = func(ev mqtt.Events) {
		ev.OnConnectionSuccess(mqtt.ConnectionSuccess{})
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v := coord.Snapshot().SignalViolations; v != 1 {
		t.Errorf("SignalViolations = %d, want 1", v)
	}
}

// =============================================================================
// Cancellation
// =============================================================================

func TestCoordinator_CancelUnboundedPublishGoesToStop(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Message = []byte("Hello World")
	cfg.PublishCount = 0
	cfg.Timeout = time.Second

	transport := newFakeTransport()
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	ctx, cancel := context.WithCancel(context.Background())
	transport.publishToken = func(n int) *mqtt.Token {
		if n == 5 {
			cancel()
		}
		return mqtt.CompletedToken(nil)
	}

	err := coord.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	calls := transport.Calls()
	if countOf(calls, "unsubscribe") != 0 {
		t.Errorf("calls = %v, want stop without unsubscribe", calls)
	}
	if indexOf(calls, "stop") < 0 {
		t.Errorf("calls = %v, want stop", calls)
	}
	if countOf(calls, "publish") < 5 {
		t.Errorf("publish attempts = %d, want at least 5", countOf(calls, "publish"))
	}
	if coord.Phase() != PhaseStopped {
		t.Errorf("Phase() = %s, want stopped", coord.Phase())
	}
}

func TestCoordinator_CancelWhileConnecting(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = time.Minute

	transport := newFakeTransport()
	transport.connect = false
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := coord.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the connect wait")
	}
	if indexOf(transport.Calls(), "stop") < 0 {
		t.Errorf("calls = %v, want stop", transport.Calls())
	}
}

func TestCoordinator_CancelThenStopTimeout(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	transport := newFakeTransport()
	transport.connect = false
	transport.noStopped = true
	coord := newTestCoordinator(t, cfg, transport, &memQueue{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := coord.Run(ctx)
	if !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Run() error = %v, want ErrStopTimeout", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, a failed stop must not read as an interruption", err)
	}
	if coord.Phase() != PhaseFailed {
		t.Errorf("Phase() = %s, want failed", coord.Phase())
	}
}

func TestCoordinator_EnqueueTimeoutFromConfig(t *testing.T) {
	cfg := testSessionConfig()
	cfg.EnqueueTimeout = 40 * time.Millisecond

	var deadline time.Duration
	queue := queueFunc(func(ctx context.Context, _ string) (string, error) {
		if d, ok := ctx.Deadline(); ok {
			deadline = time.Until(d)
		}
		return "action-1", nil
	})
	coord := newTestCoordinator(t, cfg, newFakeTransport(), queue)

	coord.dispatcher.Handle(context.Background(), "t", []byte(`{"toolName":"dock"}`))
	if deadline <= 0 || deadline > cfg.EnqueueTimeout {
		t.Errorf("enqueue deadline = %v, want within %v", deadline, cfg.EnqueueTimeout)
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestCoordinator_RunOnce(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Timeout = 20 * time.Millisecond
	coord := newTestCoordinator(t, cfg, newFakeTransport(), &memQueue{})

	_ = coord.Run(context.Background())
	if err := coord.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run() = %v, want ErrAlreadyStarted", err)
	}
}

func TestNewCoordinator_Validation(t *testing.T) {
	valid := testSessionConfig()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing transport", Options{Config: valid, Queue: &memQueue{}}},
		{"missing queue", Options{Config: valid, Transport: newFakeTransport()}},
		{"missing topic", Options{Config: func() Config { c := valid; c.Topic = ""; return c }(), Transport: newFakeTransport(), Queue: &memQueue{}}},
		{"zero timeout", Options{Config: func() Config { c := valid; c.Timeout = 0; return c }(), Transport: newFakeTransport(), Queue: &memQueue{}}},
		{"negative enqueue timeout", Options{Config: func() Config { c := valid; c.EnqueueTimeout = -time.Second; return c }(), Transport: newFakeTransport(), Queue: &memQueue{}}},
		{"message without interval", Options{Config: func() Config {
			c := valid
			c.Message = []byte("x")
			c.PublishInterval = 0
			return c
		}(), Transport: newFakeTransport(), Queue: &memQueue{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCoordinator(tt.opts); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewCoordinator() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
