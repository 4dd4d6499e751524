package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
// Forwarded event envelopes are a few hundred bytes; this only guards
// against runaway payloads.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic and waits for the
// broker acknowledgement (QoS 1 and 2) up to a fixed timeout.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "graylogic/core/event/motion_detected")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Retained Messages:
//   - Use for state topics (graylogic/core/device/<device>/state, health)
//   - Don't use for events; a late subscriber would see a stale reading
//
// Returns:
//   - error: nil on success; ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected,
//     or ErrPublishFailed wrapping the cause
//
// Example:
//
//	topic := mqtt.Topics{}.CoreEvent("motion_detected")
//	err := client.Publish(topic, envelope, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return awaitAck(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// awaitAck waits for a broker acknowledgement and wraps failures in op.
func awaitAck(token pahomqtt.Token, op error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", op, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
//
// Use for state updates where new subscribers should receive the current
// state, such as the last motion reading of a camera.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
