package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing, subscribing or
	// unsubscribing while the broker link is down, and by HealthCheck.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned by Connect when the broker cannot be
	// reached or refuses the connection within the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when the broker does not acknowledge a
	// publish in time, rejects it, or the payload exceeds 1MB.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription is not
	// acknowledged or the handler is nil. The subscription is not tracked.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe is not acknowledged.
	// The subscription is already forgotten and will not be restored.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
