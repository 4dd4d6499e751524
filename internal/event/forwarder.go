package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/mqtt"
)

// MQTTPublisher is the part of the MQTT client the forwarder needs.
// *mqtt.Client satisfies it.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// PublishRetained publishes at the client's configured QoS.
	PublishRetained(topic string, payload []byte) error
}

// Identified events carry their own ID. Others get a fresh one per forward.
type Identified interface {
	EventID() string
}

// Stateful events also update a retained per-device state topic.
type Stateful interface {
	// StateKey names the device, e.g. "instar-camera-1234567890AB".
	StateKey() string
	StatePayload() any
}

// Envelope is the JSON document published for every forwarded event.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Event     `json:"payload"`
}

// Forwarder republishes bus events to graylogic/core/event/<type> so other
// Gray Logic services see them without linking against this process.
type Forwarder struct {
	client MQTTPublisher
	qos    byte
	source string
	logger Logger
}

// NewMQTTForwarder creates a forwarder publishing at qos. source is placed
// in every envelope (for example "instar").
func NewMQTTForwarder(client MQTTPublisher, qos byte, source string, logger Logger) *Forwarder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Forwarder{client: client, qos: qos, source: source, logger: logger}
}

// Handle is an event.Handler. Publish failures are logged and dropped.
func (f *Forwarder) Handle(e Event) {
	env := Envelope{
		ID:        eventID(e),
		Type:      e.EventType(),
		Source:    f.source,
		Timestamp: e.OccurredAt().UTC(),
		Payload:   e,
	}

	data, err := json.Marshal(env)
	if err != nil {
		f.logger.Error("marshalling event envelope", "event_type", env.Type, "error", err)
		return
	}

	topics := mqtt.Topics{}
	if err := f.client.Publish(topics.CoreEvent(env.Type), data, f.qos, false); err != nil {
		f.logger.Warn("forwarding event failed", "event_type", env.Type, "error", err)
	}

	s, ok := e.(Stateful)
	if !ok {
		return
	}
	state, err := json.Marshal(s.StatePayload())
	if err != nil {
		f.logger.Error("marshalling device state", "device", s.StateKey(), "error", err)
		return
	}
	if err := f.client.PublishRetained(topics.CoreDeviceState(s.StateKey()), state); err != nil {
		f.logger.Warn("publishing device state failed", "device", s.StateKey(), "error", err)
	}
}

func eventID(e Event) string {
	if id, ok := e.(Identified); ok && id.EventID() != "" {
		return id.EventID()
	}
	return uuid.NewString()
}
