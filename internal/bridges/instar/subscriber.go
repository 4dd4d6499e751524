package instar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/device"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/mqtt"
)

// MQTTClient is the transport the subscriber listens on.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceResolver returns the device for an id, creating it on first sight.
// *device.Registry satisfies it.
type DeviceResolver interface {
	Resolve(ctx context.Context, id device.DeviceID) (*device.Device, error)
}

// Logger defines the logging interface used by the subscriber.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SubscriberOptions holds the collaborators of a Subscriber.
type SubscriberOptions struct {
	// MQTTClient is required.
	MQTTClient MQTTClient

	// Resolver is required.
	Resolver DeviceResolver

	// RootTopic defaults to DefaultRootTopic.
	RootTopic string

	// QoS of the root subscription.
	QoS byte

	// Decoder defaults to NewDecoder().
	Decoder PayloadDecoder

	// Logger is optional.
	Logger Logger

	// Now defaults to time.Now. Readings are stamped with it.
	Now func() time.Time
}

// Stats is a snapshot of the subscriber's message counters.
type Stats struct {
	Received        uint64 `json:"received"`
	Accepted        uint64 `json:"accepted"`
	EmptyPayloads   uint64 `json:"empty_payloads"`
	TopicMismatches uint64 `json:"topic_mismatches"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Unsupported     uint64 `json:"unsupported"`
	Failures        uint64 `json:"failures"`
}

type counters struct {
	received        atomic.Uint64
	accepted        atomic.Uint64
	emptyPayloads   atomic.Uint64
	topicMismatches atomic.Uint64
	decodeErrors    atomic.Uint64
	unsupported     atomic.Uint64
	failures        atomic.Uint64
}

// Subscriber feeds Instar alarm messages into camera motion sensors.
//
// Thread Safety: All methods are safe for concurrent use.
type Subscriber struct {
	mqtt     MQTTClient
	resolver DeviceResolver
	decoder  PayloadDecoder
	logger   Logger
	now      func() time.Time

	root string
	qos  byte

	mu      sync.Mutex
	started bool

	stats counters
}

// NewSubscriber creates a subscriber. Call Start to begin receiving.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client is required", ErrMissingCollaborator)
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("%w: device resolver is required", ErrMissingCollaborator)
	}

	s := &Subscriber{
		mqtt:     opts.MQTTClient,
		resolver: opts.Resolver,
		decoder:  opts.Decoder,
		logger:   opts.Logger,
		now:      opts.Now,
		root:     opts.RootTopic,
		qos:      opts.QoS,
	}
	if s.decoder == nil {
		s.decoder = NewDecoder()
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.root == "" {
		s.root = DefaultRootTopic
	}
	return s, nil
}

// Pattern returns the subscription pattern, "<root>/#".
func (s *Subscriber) Pattern() string {
	return mqtt.Topics{}.InstarAll(s.root)
}

// Start subscribes to the root topic pattern.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	pattern := s.Pattern()
	if err := s.mqtt.Subscribe(pattern, s.qos, s.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", pattern, err)
	}
	s.started = true

	s.logger.Info("instar subscriber started", "topic", pattern, "qos", s.qos)
	return nil
}

// Stop unsubscribes from the root topic pattern. It is a no-op when the
// subscriber is not running.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if err := s.mqtt.Unsubscribe(s.Pattern()); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", s.Pattern(), err)
	}

	s.logger.Info("instar subscriber stopped")
	return nil
}

// HandleMessage processes one inbound message. Dropped messages return
// nil; only a failure to resolve a supported device is returned.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	s.stats.received.Add(1)

	if len(payload) == 0 {
		s.stats.emptyPayloads.Add(1)
		return nil
	}

	parsed, ok := ParseTopic(topic)
	if !ok {
		s.stats.topicMismatches.Add(1)
		s.logger.Debug("ignoring topic", "topic", topic)
		return nil
	}

	detected, err := s.decoder.Decode(payload)
	if err != nil {
		s.stats.decodeErrors.Add(1)
		s.logger.Warn("dropping malformed alarm payload",
			"topic", topic,
			"device_id", parsed.DeviceID,
			"error", err,
		)
		return nil
	}

	id := CameraID(parsed.DeviceID)
	d, err := s.resolver.Resolve(context.Background(), id)
	switch {
	case errors.Is(err, device.ErrTypeNotSupported):
		s.stats.unsupported.Add(1)
		return nil
	case errors.Is(err, device.ErrInvalidDeviceID):
		s.stats.topicMismatches.Add(1)
		s.logger.Debug("ignoring topic with unusable device id", "topic", topic, "error", err)
		return nil
	case err != nil:
		s.stats.failures.Add(1)
		s.logger.Error("resolving camera failed", "device", id.String(), "error", err)
		return fmt.Errorf("resolving %s: %w", id, err)
	}

	sensor, ok := d.Motion()
	if !ok {
		s.stats.failures.Add(1)
		s.logger.Error("camera has no motion capability", "device", id.String())
		return nil
	}

	sensor.SetMotionDetected(s.now(), detected)
	s.stats.accepted.Add(1)

	s.logger.Debug("motion state updated",
		"device", id.String(),
		"detected", detected,
		"triggered_topic", parsed.Triggered,
	)
	return nil
}

// Stats returns a snapshot of the message counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received:        s.stats.received.Load(),
		Accepted:        s.stats.accepted.Load(),
		EmptyPayloads:   s.stats.emptyPayloads.Load(),
		TopicMismatches: s.stats.topicMismatches.Load(),
		DecodeErrors:    s.stats.decodeErrors.Load(),
		Unsupported:     s.stats.unsupported.Load(),
		Failures:        s.stats.failures.Load(),
	}
}
