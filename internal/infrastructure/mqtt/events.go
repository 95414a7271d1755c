package mqtt

import (
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Events receives the client's asynchronous notifications.
//
// Methods are invoked from paho's goroutines and from the client's own
// connect loop. Implementations must tolerate concurrent calls and must
// not block for long.
type Events interface {
	// OnPublishReceived is called for every message on a subscribed topic.
	OnPublishReceived(msg Message)

	// OnConnectionSuccess is called once per Start, after the first
	// successful CONNACK. Automatic reconnects do not repeat it.
	OnConnectionSuccess(info ConnectionSuccess)

	// OnConnectionFailure is called for every failed connect attempt and
	// every lost connection. The client keeps retrying until Stop.
	OnConnectionFailure(err error)

	// OnStopped is called once after Stop has fully disconnected.
	OnStopped(info Stopped)
}

// Message is an inbound PUBLISH.
type Message struct {
	Topic      string
	Payload    []byte
	QoS        byte
	Duplicate  bool
	Retained   bool
	ReceivedAt time.Time

	// Sequence orders messages within this client's receive path, starting at 1.
	Sequence uint64
}

// ConnectionSuccess describes the CONNACK that completed the first connection.
type ConnectionSuccess struct {
	Broker         string
	ClientID       string
	SessionPresent bool
	ReturnCode     byte
}

// Stopped describes a completed shutdown.
type Stopped struct {
	Reason string
	At     time.Time
}

// newMessage converts a paho message, stamping it with the next sequence number.
func newMessage(msg pahomqtt.Message, seq *atomic.Uint64) Message {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	return Message{
		Topic:      msg.Topic(),
		Payload:    payload,
		QoS:        msg.Qos(),
		Duplicate:  msg.Duplicate(),
		Retained:   msg.Retained(),
		ReceivedAt: time.Now(),
		Sequence:   seq.Add(1),
	}
}
