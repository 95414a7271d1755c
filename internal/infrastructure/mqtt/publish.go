package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (128KB), the managed broker's limit.
const maxPayloadSize = 128 << 10

// Publish sends a non-retained message to topic.
//
// The token resolves when the broker acknowledges the message (QoS 1/2) or
// once it has been written (QoS 0). Validation and connection errors resolve
// the token immediately.
//
// Parameters:
//   - topic: The topic to publish to (no wildcards)
//   - payload: The message payload
//   - qos: Quality of Service level (0, 1, or 2)
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
func (c *Client) Publish(topic string, payload []byte, qos byte) *Token {
	if err := ValidatePublishTopic(topic); err != nil {
		return CompletedToken(err)
	}
	if qos > maxQoS {
		return CompletedToken(ErrInvalidQoS)
	}
	if len(payload) > maxPayloadSize {
		return CompletedToken(fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize))
	}
	if !c.IsConnected() {
		return CompletedToken(ErrNotConnected)
	}

	return bridgeToken(c.client.Publish(topic, qos, false, payload), ErrPublishFailed, nil)
}
