package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "instar/+/status/alarm" matches every camera's alarm topic
//   - # (multi-level): "instar/#" matches everything the cameras publish
//
// The handler is called in a separate goroutine for each received message
// and must not block for long. Panics are recovered and logged.
//
// Subscriptions are tracked and restored automatically after a reconnect.
//
// Parameters:
//   - topic: The topic pattern to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback invoked with the concrete topic and raw payload
//
// Returns:
//   - error: nil on success; ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected,
//     or ErrSubscribeFailed wrapping the broker error
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.InstarAll("instar"), 1, sub.HandleMessage)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := awaitAck(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the subscription for the exact topic pattern.
//
// The pattern is forgotten before the broker is asked, so it is not
// restored on reconnect even if the request fails. Messages already in
// flight may still be delivered to the old handler.
//
// Parameters:
//   - topic: The pattern previously passed to Subscribe (e.g., "instar/#")
//
// Returns:
//   - error: nil on success; ErrInvalidTopic, ErrNotConnected, or
//     ErrUnsubscribeFailed wrapping the broker error
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	return awaitAck(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of tracked subscriptions.
//
// Used by tests and diagnostics; the bridge normally holds exactly one.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether the exact topic pattern is tracked.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
