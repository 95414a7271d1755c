package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
)

func TestLifecycleGate_FailuresDoNotResolveConnected(t *testing.T) {
	gate := NewLifecycleGate()

	gate.SignalConnectionFailed(errors.New("refused"))
	gate.SignalConnectionFailed(errors.New("tls handshake"))

	if _, err := gate.AwaitConnected(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("AwaitConnected() = %v, want ErrWaitTimeout", err)
	}
	if gate.ConnectionFailures() != 2 {
		t.Errorf("ConnectionFailures() = %d, want 2", gate.ConnectionFailures())
	}
	if got := gate.LastConnectionFailure(); got == nil || got.Error() != "tls handshake" {
		t.Errorf("LastConnectionFailure() = %v", got)
	}
}

func TestLifecycleGate_ConnectedAfterFailures(t *testing.T) {
	gate := NewLifecycleGate()
	gate.SignalConnectionFailed(errors.New("refused"))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = gate.SignalConnected(mqtt.ConnectionSuccess{ClientID: "rover-07"})
	}()

	info, err := gate.AwaitConnected(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("AwaitConnected() error = %v", err)
	}
	if info.ClientID != "rover-07" {
		t.Errorf("ClientID = %q", info.ClientID)
	}
	if !gate.Connected() || gate.Stopped() {
		t.Errorf("Connected()=%v Stopped()=%v", gate.Connected(), gate.Stopped())
	}
}

func TestLifecycleGate_DuplicateSignalsCounted(t *testing.T) {
	gate := NewLifecycleGate()

	if err := gate.SignalConnected(mqtt.ConnectionSuccess{}); err != nil {
		t.Fatalf("first SignalConnected() = %v", err)
	}
	if err := gate.SignalConnected(mqtt.ConnectionSuccess{}); !errors.Is(err, ErrDuplicateSignal) {
		t.Errorf("second SignalConnected() = %v, want ErrDuplicateSignal", err)
	}
	if err := gate.SignalStopped(mqtt.Stopped{}); err != nil {
		t.Fatalf("first SignalStopped() = %v", err)
	}
	if err := gate.SignalStopped(mqtt.Stopped{}); !errors.Is(err, ErrDuplicateSignal) {
		t.Errorf("second SignalStopped() = %v, want ErrDuplicateSignal", err)
	}

	if gate.Violations() != 2 {
		t.Errorf("Violations() = %d, want 2", gate.Violations())
	}
}

func TestLifecycleGate_StoppedIndependentOfConnected(t *testing.T) {
	gate := NewLifecycleGate()
	_ = gate.SignalStopped(mqtt.Stopped{Reason: "stop requested"})

	info, err := gate.AwaitStopped(context.Background(), time.Second)
	if err != nil || info.Reason != "stop requested" {
		t.Errorf("AwaitStopped() = %+v, %v", info, err)
	}
	if gate.Connected() {
		t.Error("Connected() = true without SignalConnected")
	}
}
