package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMessageCounter_ReachesTargetOnce(t *testing.T) {
	c := NewMessageCounter(3)

	for i := uint64(1); i <= 5; i++ {
		if got := c.RecordOne(); got != i {
			t.Fatalf("RecordOne() = %d, want %d", got, i)
		}
		wantReached := i >= 3
		if c.Reached() != wantReached {
			t.Errorf("after %d: Reached() = %v, want %v", i, c.Reached(), wantReached)
		}
	}
}

func TestMessageCounter_ZeroTargetNeverReached(t *testing.T) {
	c := NewMessageCounter(0)
	for i := 0; i < 10; i++ {
		c.RecordOne()
	}

	if c.Reached() {
		t.Error("Reached() = true for target 0")
	}

	reached, err := c.AwaitTarget(context.Background(), 20*time.Millisecond)
	if reached || err != nil {
		t.Errorf("AwaitTarget() = %v, %v, want false, nil", reached, err)
	}
}

func TestMessageCounter_AwaitTarget(t *testing.T) {
	c := NewMessageCounter(2)
	go func() {
		c.RecordOne()
		time.Sleep(10 * time.Millisecond)
		c.RecordOne()
	}()

	reached, err := c.AwaitTarget(context.Background(), 2*time.Second)
	if !reached || err != nil {
		t.Errorf("AwaitTarget() = %v, %v, want true, nil", reached, err)
	}

	// Reading again after completion returns immediately.
	reached, err = c.AwaitTarget(context.Background(), time.Nanosecond)
	if !reached || err != nil {
		t.Errorf("second AwaitTarget() = %v, %v", reached, err)
	}
}

func TestMessageCounter_AwaitTargetTimeoutIsNotError(t *testing.T) {
	c := NewMessageCounter(5)
	c.RecordOne()

	reached, err := c.AwaitTarget(context.Background(), 20*time.Millisecond)
	if reached || err != nil {
		t.Errorf("AwaitTarget() = %v, %v, want false, nil", reached, err)
	}
}

func TestMessageCounter_AwaitTargetCancelled(t *testing.T) {
	c := NewMessageCounter(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reached, err := c.AwaitTarget(ctx, time.Hour)
	if reached || !errors.Is(err, context.Canceled) {
		t.Errorf("AwaitTarget() = %v, %v, want false, context.Canceled", reached, err)
	}
}

func TestMessageCounter_Concurrent(t *testing.T) {
	c := NewMessageCounter(50)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordOne()
		}()
	}
	wg.Wait()

	if c.Count() != 100 {
		t.Errorf("Count() = %d, want 100", c.Count())
	}
	if !c.Reached() {
		t.Error("Reached() = false after passing target")
	}
}
