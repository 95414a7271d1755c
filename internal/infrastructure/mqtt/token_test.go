package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestToken_FirstCompletionWins(t *testing.T) {
	tok := NewToken()

	if !tok.Complete(Ack{ReasonCodes: []byte{1}}, nil) {
		t.Fatal("first Complete() = false, want true")
	}
	if tok.Complete(Ack{}, errors.New("late")) {
		t.Error("second Complete() = true, want false")
	}

	ack, err := tok.Result()
	if err != nil {
		t.Errorf("Result() error = %v, want nil", err)
	}
	if len(ack.ReasonCodes) != 1 || ack.ReasonCodes[0] != 1 {
		t.Errorf("Result() ack = %+v", ack)
	}
}

func TestToken_ResultBeforeDone(t *testing.T) {
	tok := NewToken()
	if _, err := tok.Result(); !errors.Is(err, ErrTimeout) {
		t.Errorf("Result() on pending token = %v, want ErrTimeout", err)
	}
}

func TestToken_Wait(t *testing.T) {
	t.Run("already resolved returns immediately", func(t *testing.T) {
		tok := CompletedToken(ErrNotConnected)
		_, err := tok.Wait(context.Background(), time.Nanosecond)
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Wait() = %v, want ErrNotConnected", err)
		}
	})

	t.Run("resolves while waiting", func(t *testing.T) {
		tok := NewToken()
		go func() {
			time.Sleep(10 * time.Millisecond)
			tok.Complete(Ack{}, nil)
		}()
		if _, err := tok.Wait(context.Background(), 2*time.Second); err != nil {
			t.Errorf("Wait() = %v, want nil", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		tok := NewToken()
		_, err := tok.Wait(context.Background(), 10*time.Millisecond)
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("Wait() = %v, want ErrTimeout", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		tok := NewToken()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := tok.Wait(ctx, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() = %v, want context.Canceled", err)
		}
	})
}

func TestToken_ConcurrentComplete(t *testing.T) {
	tok := NewToken()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok.Complete(Ack{}, nil) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Complete() succeeded %d times, want 1", wins)
	}
}

func TestAck_Failed(t *testing.T) {
	tests := []struct {
		name  string
		codes []byte
		want  bool
	}{
		{"no codes", nil, false},
		{"granted qos 1", []byte{0x01}, false},
		{"granted qos 2", []byte{0x02}, false},
		{"refused", []byte{0x80}, true},
		{"not authorized", []byte{0x87}, true},
		{"mixed", []byte{0x01, 0x80}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Ack{ReasonCodes: tt.codes}).Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
