package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

// memQueue is an in-memory Queue that records tool names in order.
type memQueue struct {
	mu    sync.Mutex
	names []string
	err   error

	// onEnqueue runs inside Enqueue before recording.
	onEnqueue func(toolName string)
}

func (q *memQueue) Enqueue(_ context.Context, toolName string) (string, error) {
	if q.onEnqueue != nil {
		q.onEnqueue(toolName)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.names = append(q.names, toolName)
	return fmt.Sprintf("action-%d", len(q.names)), nil
}

func (q *memQueue) Names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.names...)
}

// queueFunc adapts a function to Queue.
type queueFunc func(ctx context.Context, toolName string) (string, error)

func (f queueFunc) Enqueue(ctx context.Context, toolName string) (string, error) {
	return f(ctx, toolName)
}

// fakeTransport scripts the transport's side of a session.
type fakeTransport struct {
	// connect emits OnConnectionSuccess after Start.
	connect bool
	// failuresFirst is the number of OnConnectionFailure events before success.
	failuresFirst int
	// noStopped suppresses OnStopped.
	noStopped bool

	subscribeToken   func() *mqtt.Token
	unsubscribeToken func() *mqtt.Token
	publishToken     func(n int) *mqtt.Token

	// afterSubscribe runs in its own goroutine once the SUBACK is returned.
	afterSubscribe func(ev mqtt.Events)

	mu           sync.Mutex
	events       mqtt.Events
	calls        []string
	connectedSet bool
	publishTimes []time.Time
	stopCalls    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connect: true}
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) Start(events mqtt.Events) {
	f.record("start")
	f.mu.Lock()
	f.events = events
	f.mu.Unlock()

	go func() {
		for i := 0; i < f.failuresFirst; i++ {
			events.OnConnectionFailure(fmt.Errorf("attempt %d refused", i+1))
		}
		if f.connect {
			f.mu.Lock()
			f.connectedSet = true
			f.calls = append(f.calls, "connected")
			f.mu.Unlock()
			events.OnConnectionSuccess(mqtt.ConnectionSuccess{Broker: "ssl://broker:8883", ClientID: "rover-07"})
		}
	}()
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	f.stopCalls++
	first := f.stopCalls == 1
	events := f.events
	f.calls = append(f.calls, "stop")
	f.mu.Unlock()

	if first && !f.noStopped && events != nil {
		go events.OnStopped(mqtt.Stopped{Reason: "stop requested", At: time.Now()})
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte) *mqtt.Token {
	f.mu.Lock()
	connected := f.connectedSet
	f.mu.Unlock()
	if !connected {
		f.record("subscribe-before-connected")
	}
	f.record("subscribe:" + topic)

	var tok *mqtt.Token
	if f.subscribeToken != nil {
		tok = f.subscribeToken()
	} else {
		tok = ackToken(1)
	}
	if f.afterSubscribe != nil {
		f.mu.Lock()
		events := f.events
		f.mu.Unlock()
		go f.afterSubscribe(events)
	}
	return tok
}

func (f *fakeTransport) Unsubscribe(topic string) *mqtt.Token {
	f.record("unsubscribe:" + topic)
	if f.unsubscribeToken != nil {
		return f.unsubscribeToken()
	}
	return mqtt.CompletedToken(nil)
}

func (f *fakeTransport) Publish(topic string, _ []byte, _ byte) *mqtt.Token {
	f.mu.Lock()
	f.publishTimes = append(f.publishTimes, time.Now())
	n := len(f.publishTimes)
	f.calls = append(f.calls, "publish:"+topic)
	f.mu.Unlock()

	if f.publishToken != nil {
		return f.publishToken(n)
	}
	return mqtt.CompletedToken(nil)
}

func (f *fakeTransport) PublishTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.publishTimes...)
}

// ackToken returns a resolved token carrying SUBACK reason codes.
func ackToken(codes ...byte) *mqtt.Token {
	tok := mqtt.NewToken()
	tok.Complete(mqtt.Ack{ReasonCodes: codes}, nil)
	return tok
}

// recordingNotifier captures broadcasts by channel.
type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]any
}

func (n *recordingNotifier) Broadcast(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]any)
	}
	n.events[channel] = append(n.events[channel], payload)
}

func (n *recordingNotifier) Count(channel string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events[channel])
}

func (n *recordingNotifier) Phases() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var phases []string
	for _, p := range n.events[ChannelPhase] {
		phases = append(phases, p.(map[string]any)["phase"].(string))
	}
	return phases
}

// recordingRecorder captures telemetry calls.
type recordingRecorder struct {
	mu         sync.Mutex
	dispatches []string
	phases     []string
}

func (r *recordingRecorder) RecordDispatch(_, toolName, outcome, reason string) {
	r.mu.Lock()
	r.dispatches = append(r.dispatches, outcome+":"+toolName+reason)
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordPhase(phase string, _ time.Duration, _ error) {
	r.mu.Lock()
	r.phases = append(r.phases, phase)
	r.mu.Unlock()
}

func testSessionConfig() Config {
	return Config{
		ClientID:        "rover-07",
		Endpoint:        "broker.example.com",
		Port:            8883,
		Topic:           "robots/rover-07/commands",
		Timeout:         300 * time.Millisecond,
		PublishInterval: 10 * time.Millisecond,
		PublishQoS:      1,
	}
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func countOf(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
