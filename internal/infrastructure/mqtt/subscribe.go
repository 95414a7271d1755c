package mqtt

// Subscribe asks the broker for messages on topic. Matching messages are
// delivered to Events.OnPublishReceived.
//
// The returned token resolves when the SUBACK arrives; its Ack carries the
// granted QoS or the refusal code for the topic. Validation and connection
// errors resolve the token immediately.
//
// Subscriptions are automatically restored if the connection is lost and
// reconnected.
//
// Parameters:
//   - topic: The topic filter to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Example:
//
//	token := client.Subscribe("robots/rover-07/commands", 1)
//	ack, err := token.Wait(ctx, 10*time.Second)
func (c *Client) Subscribe(topic string, qos byte) *Token {
	if err := ValidateTopicFilter(topic); err != nil {
		return CompletedToken(err)
	}
	if qos > maxQoS {
		return CompletedToken(ErrInvalidQoS)
	}
	if !c.IsConnected() {
		return CompletedToken(ErrNotConnected)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = qos
	c.subMu.Unlock()

	pt := c.client.Subscribe(topic, qos, c.wrapHandler())
	token := bridgeToken(pt, ErrSubscribeFailed, subackCodes(pt, topic))

	// Drop tracking for subscriptions the broker did not accept.
	go func() {
		<-token.Done()
		ack, err := token.Result()
		if err != nil || ack.Failed() {
			c.subMu.Lock()
			delete(c.subscriptions, topic)
			c.subMu.Unlock()
		}
	}()

	return token
}

// Unsubscribe removes a subscription. The token resolves on UNSUBACK.
//
// Any messages already in flight may still be delivered after the token
// resolves.
func (c *Client) Unsubscribe(topic string) *Token {
	if err := ValidateTopicFilter(topic); err != nil {
		return CompletedToken(err)
	}
	if !c.IsConnected() {
		return CompletedToken(ErrNotConnected)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return bridgeToken(c.client.Unsubscribe(topic), ErrUnsubscribeFailed, nil)
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the given topic.
//
// Note: This checks only the exact topic string, not pattern matching.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
