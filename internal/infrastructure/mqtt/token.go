package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// reasonCodeFailure is the lowest reason code the broker uses to signal
// a refused subscription.
const reasonCodeFailure = 0x80

// Ack carries what the broker returned for an operation.
type Ack struct {
	// ReasonCodes holds one entry per topic for SUBACK. Empty for other packets.
	ReasonCodes []byte
}

// Failed reports whether any reason code indicates refusal.
func (a Ack) Failed() bool {
	for _, rc := range a.ReasonCodes {
		if rc >= reasonCodeFailure {
			return true
		}
	}
	return false
}

// Token is a one-shot completion handle for an asynchronous MQTT operation.
//
// Thread Safety:
//   - Complete may be called from any goroutine; only the first call counts.
//   - Done and Result are safe for concurrent readers.
type Token struct {
	done chan struct{}
	once sync.Once
	ack  Ack
	err  error
}

// NewToken returns a pending token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// CompletedToken returns a token that is already resolved with err.
func CompletedToken(err error) *Token {
	t := NewToken()
	t.Complete(Ack{}, err)
	return t
}

// Complete resolves the token. It returns false if the token was already resolved.
func (t *Token) Complete(ack Ack, err error) bool {
	resolved := false
	t.once.Do(func() {
		t.ack = ack
		t.err = err
		close(t.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the token is resolved.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *Token) Result() (Ack, error) {
	select {
	case <-t.done:
		return t.ack, t.err
	default:
		return Ack{}, ErrTimeout
	}
}

// Wait blocks until the token resolves, the timeout elapses or ctx is done.
//
// Returns:
//   - Ack, error: The operation's outcome when it resolved in time
//   - ErrTimeout: If the timeout elapsed first
//   - ctx.Err(): If the context was cancelled first
func (t *Token) Wait(ctx context.Context, timeout time.Duration) (Ack, error) {
	select {
	case <-t.done:
		return t.ack, t.err
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return t.ack, t.err
	case <-timer.C:
		return Ack{}, fmt.Errorf("%w: after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

// bridgeToken resolves a Token from a paho token once paho completes it.
// wrap is applied to a non-nil paho error; ack extracts broker reason codes.
func bridgeToken(pt pahomqtt.Token, wrap error, ack func() Ack) *Token {
	t := NewToken()
	go func() {
		<-pt.Done()
		var a Ack
		if ack != nil {
			a = ack()
		}
		if err := pt.Error(); err != nil {
			t.Complete(a, fmt.Errorf("%w: %w", wrap, err))
			return
		}
		t.Complete(a, nil)
	}()
	return t
}

// subackCodes extracts per-topic reason codes from a paho subscribe token.
func subackCodes(pt pahomqtt.Token, topic string) func() Ack {
	return func() Ack {
		st, ok := pt.(*pahomqtt.SubscribeToken)
		if !ok {
			return Ack{}
		}
		if rc, found := st.Result()[topic]; found {
			return Ack{ReasonCodes: []byte{rc}}
		}
		return Ack{}
	}
}
