package instar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/device"
	"github.com/nerrad567/gray-logic-instar/internal/event"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/mqtt"
)

// MockMQTTClient records subscriptions and delivers simulated messages.
type MockMQTTClient struct {
	mu             sync.Mutex
	handlers       map[string]mqtt.MessageHandler
	qos            map[string]byte
	unsubscribed   []string
	subscribeErr   error
	unsubscribeErr error
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		handlers: make(map[string]mqtt.MessageHandler),
		qos:      make(map[string]byte),
	}
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	m.qos[topic] = qos
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

// SimulateMessage delivers a message through the "instar/#" handler.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers["instar/#"]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler subscribed")
	}
	return handler(topic, payload)
}

// MockRepository is an in-memory device.Repository that counts saves.
type MockRepository struct {
	mu      sync.Mutex
	records map[device.DeviceID]device.Record
	saves   atomic.Int32
	saveErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[device.DeviceID]device.Record)}
}

func (m *MockRepository) Save(_ context.Context, d *device.Device) error {
	m.saves.Add(1)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[d.ID()] = d.Record()
	return nil
}

func (m *MockRepository) GetByID(_ context.Context, id device.DeviceID) (*device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		return &rec, nil
	}
	return nil, device.ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *MockPublisher) Publish(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *MockPublisher) ofType(eventType string) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *MockPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// MockResolver counts Resolve calls and can fail.
type MockResolver struct {
	calls  atomic.Int32
	device *device.Device
	err    error
}

func (m *MockResolver) Resolve(context.Context, device.DeviceID) (*device.Device, error) {
	m.calls.Add(1)
	return m.device, m.err
}

// countingDecoder wraps Decoder and counts calls.
type countingDecoder struct {
	calls atomic.Int32
}

func (d *countingDecoder) Decode(payload []byte) (bool, error) {
	d.calls.Add(1)
	return Decoder{}.Decode(payload)
}

// MockLogger records log calls by level.
type MockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
}

func (l *MockLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *MockLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *MockLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *MockLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *MockLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *MockLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

const (
	testCameraID   = "1234567890AB"
	triggeredTopic = "instar/1234567890AB/status/alarm/triggered"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type harness struct {
	sub      *Subscriber
	mqtt     *MockMQTTClient
	repo     *MockRepository
	pub      *MockPublisher
	registry *device.Registry
	decoder  *countingDecoder
	logger   *MockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		mqtt:    NewMockMQTTClient(),
		repo:    NewMockRepository(),
		pub:     &MockPublisher{},
		decoder: &countingDecoder{},
		logger:  &MockLogger{},
	}

	types := device.NewTypeRegistry()
	if err := Register(types, h.pub); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.registry = device.NewRegistry(h.repo, types, h.pub)

	sub, err := NewSubscriber(SubscriberOptions{
		MQTTClient: h.mqtt,
		Resolver:   h.registry,
		QoS:        1,
		Decoder:    h.decoder,
		Logger:     h.logger,
		Now:        func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.sub = sub
	return h
}

func (h *harness) send(t *testing.T, topic, payload string) {
	t.Helper()
	if err := h.mqtt.SimulateMessage(topic, []byte(payload)); err != nil {
		t.Fatalf("SimulateMessage(%q) error = %v", topic, err)
	}
}

func (h *harness) motion(t *testing.T) *device.MotionSensor {
	t.Helper()
	d, err := h.registry.Get(CameraID(testCameraID))
	if err != nil {
		t.Fatalf("camera not registered: %v", err)
	}
	sensor, ok := d.Motion()
	if !ok {
		t.Fatal("camera has no motion sensor")
	}
	return sensor
}

func TestNewSubscriber_RequiresCollaborators(t *testing.T) {
	if _, err := NewSubscriber(SubscriberOptions{Resolver: &MockResolver{}}); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("missing MQTT client error = %v", err)
	}
	if _, err := NewSubscriber(SubscriberOptions{MQTTClient: NewMockMQTTClient()}); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("missing resolver error = %v", err)
	}
}

func TestSubscriber_StartSubscribesRootPattern(t *testing.T) {
	h := newHarness(t)

	if h.sub.Pattern() != "instar/#" {
		t.Errorf("Pattern() = %q, want %q", h.sub.Pattern(), "instar/#")
	}
	if _, ok := h.mqtt.handlers["instar/#"]; !ok {
		t.Fatal("no subscription on instar/#")
	}
	if h.mqtt.qos["instar/#"] != 1 {
		t.Errorf("QoS = %d, want 1", h.mqtt.qos["instar/#"])
	}
	if err := h.sub.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := h.sub.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(h.mqtt.unsubscribed) != 1 || h.mqtt.unsubscribed[0] != "instar/#" {
		t.Errorf("unsubscribed = %v", h.mqtt.unsubscribed)
	}
	if err := h.sub.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSubscriber_CustomRootTopic(t *testing.T) {
	client := NewMockMQTTClient()
	sub, err := NewSubscriber(SubscriberOptions{
		MQTTClient: client,
		Resolver:   &MockResolver{},
		RootTopic:  "cameras",
	})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, ok := client.handlers["cameras/#"]; !ok {
		t.Errorf("handlers = %v, want cameras/#", client.handlers)
	}
}

func TestSubscriber_StartErrors(t *testing.T) {
	client := NewMockMQTTClient()
	client.subscribeErr = errors.New("not connected")
	sub, err := NewSubscriber(SubscriberOptions{MQTTClient: client, Resolver: &MockResolver{}})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}

	if err := sub.Start(context.Background()); !errors.Is(err, client.subscribeErr) {
		t.Errorf("Start() error = %v, want wrapped subscribe error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sub.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start(cancelled) error = %v", err)
	}
}

// Scenario A: first alarm from an unseen camera.
func TestSubscriber_FirstTriggeredAlarmCreatesCamera(t *testing.T) {
	h := newHarness(t)

	h.send(t, triggeredTopic, `{"val":"7"}`)

	if n := h.repo.saves.Load(); n != 1 {
		t.Errorf("Save calls = %d, want 1", n)
	}

	created := h.pub.ofType(device.EventTypeDeviceCreated)
	if len(created) != 1 {
		t.Fatalf("device created events = %d, want 1", len(created))
	}
	if ev := created[0].(device.DeviceCreatedEvent); ev.DisplayName != "instar-camera-1234567890AB" {
		t.Errorf("created display name = %q", ev.DisplayName)
	}

	motion := h.pub.ofType(device.EventTypeMotionDetected)
	if len(motion) != 1 {
		t.Fatalf("motion events = %d, want 1", len(motion))
	}
	ev := motion[0].(device.MotionDetectedEvent)
	wantProp := device.PropertyID{Device: CameraID(testCameraID), Key: "motion"}
	if ev.Property != wantProp || !ev.Value || !ev.Timestamp.Equal(fixedNow) {
		t.Errorf("motion event = %+v", ev)
	}

	state, ok := h.motion(t).State()
	if !ok || !state.Detected || !state.LastMotionDetected.Equal(fixedNow) {
		t.Errorf("motion state = %+v, %v", state, ok)
	}

	if got := h.sub.Stats(); got.Received != 1 || got.Accepted != 1 {
		t.Errorf("Stats() = %+v", got)
	}
}

// Scenario B: alarm cleared on a known camera.
func TestSubscriber_ClearedAlarmOnKnownCamera(t *testing.T) {
	h := newHarness(t)
	h.send(t, triggeredTopic, `{"val":"7"}`)

	h.send(t, triggeredTopic, `{"val":"0"}`)

	if n := h.repo.saves.Load(); n != 1 {
		t.Errorf("Save calls = %d, want 1", n)
	}
	if n := len(h.pub.ofType(device.EventTypeDeviceCreated)); n != 1 {
		t.Errorf("device created events = %d, want 1", n)
	}

	motion := h.pub.ofType(device.EventTypeMotionDetected)
	if len(motion) != 2 {
		t.Fatalf("motion events = %d, want 2", len(motion))
	}
	if motion[1].(device.MotionDetectedEvent).Value {
		t.Error("second motion event value = true, want false")
	}

	state, _ := h.motion(t).State()
	if state.Detected {
		t.Error("motion state still detected")
	}
}

// Scenario C: topic outside the alarm shape.
func TestSubscriber_ForeignTopicIgnored(t *testing.T) {
	h := newHarness(t)

	if err := h.sub.HandleMessage("foo/bar", []byte(`{"val":"7"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if h.decoder.calls.Load() != 0 {
		t.Error("decoder called for a foreign topic")
	}
	if h.repo.saves.Load() != 0 || h.registry.Count() != 0 {
		t.Error("resolver touched for a foreign topic")
	}
	if h.pub.total() != 0 {
		t.Error("events published for a foreign topic")
	}
	if h.logger.count("debug") != 1 || h.logger.count("warn") != 0 || h.logger.count("error") != 0 {
		t.Errorf("log entries = %+v, want one debug line", h.logger.entries)
	}
	if got := h.sub.Stats(); got.TopicMismatches != 1 || got.Accepted != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestSubscriber_RepeatedMessagesEachPublish(t *testing.T) {
	h := newHarness(t)

	h.send(t, triggeredTopic, `{"val":"1"}`)
	h.send(t, triggeredTopic, `{"val":"1"}`)

	if n := h.repo.saves.Load(); n != 1 {
		t.Errorf("Save calls = %d, want 1", n)
	}
	if n := len(h.pub.ofType(device.EventTypeDeviceCreated)); n != 1 {
		t.Errorf("device created events = %d, want 1", n)
	}
	if n := len(h.pub.ofType(device.EventTypeMotionDetected)); n != 2 {
		t.Errorf("motion events = %d, want 2", n)
	}
}

func TestSubscriber_BothTopicVariants(t *testing.T) {
	h := newHarness(t)

	h.send(t, "instar/1234567890AB/status/alarm", `{"val":"2"}`)
	h.send(t, triggeredTopic, `{"val":"0"}`)

	motion := h.pub.ofType(device.EventTypeMotionDetected)
	if len(motion) != 2 {
		t.Fatalf("motion events = %d, want 2", len(motion))
	}
	if !motion[0].(device.MotionDetectedEvent).Value || motion[1].(device.MotionDetectedEvent).Value {
		t.Error("motion values do not follow payloads")
	}
	if h.registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.registry.Count())
	}
}

func TestSubscriber_DropsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		payload   string
		wantLevel string
		wantStat  func(Stats) uint64
	}{
		{"empty payload", triggeredTopic, "", "", func(s Stats) uint64 { return s.EmptyPayloads }},
		{"non-integer val", triggeredTopic, `{"val":"abc"}`, "warn", func(s Stats) uint64 { return s.DecodeErrors }},
		{"invalid json", triggeredTopic, `not json`, "warn", func(s Stats) uint64 { return s.DecodeErrors }},
		{"missing val", triggeredTopic, `{"state":"1"}`, "warn", func(s Stats) uint64 { return s.DecodeErrors }},
		{"wrong segment", "instar/1234567890AB/status/ptz", `{"val":"1"}`, "debug", func(s Stats) uint64 { return s.TopicMismatches }},
		{"too short", "instar/1234567890AB", `{"val":"1"}`, "debug", func(s Stats) uint64 { return s.TopicMismatches }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			if err := h.sub.HandleMessage(tt.topic, []byte(tt.payload)); err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}

			if h.registry.Count() != 0 || h.repo.saves.Load() != 0 {
				t.Error("device created for a dropped message")
			}
			if h.pub.total() != 0 {
				t.Errorf("events published = %d, want 0", h.pub.total())
			}
			if tt.wantLevel != "" && h.logger.count(tt.wantLevel) != 1 {
				t.Errorf("%s log lines = %d, want 1", tt.wantLevel, h.logger.count(tt.wantLevel))
			}
			if tt.wantLevel == "" && h.logger.count("debug")+h.logger.count("warn") != 0 {
				t.Errorf("unexpected log lines: %+v", h.logger.entries)
			}
			if got := tt.wantStat(h.sub.Stats()); got != 1 {
				t.Errorf("counter = %d, want 1", got)
			}
		})
	}
}

func TestSubscriber_DecodeErrorKeepsExistingState(t *testing.T) {
	h := newHarness(t)
	h.send(t, triggeredTopic, `{"val":"1"}`)
	before, _ := h.motion(t).State()

	h.send(t, triggeredTopic, `{"val":"abc"}`)

	after, _ := h.motion(t).State()
	if after != before {
		t.Errorf("state changed after decode error: %+v -> %+v", before, after)
	}
	if n := len(h.pub.ofType(device.EventTypeMotionDetected)); n != 1 {
		t.Errorf("motion events = %d, want 1", n)
	}
}

func TestSubscriber_UnsupportedTypeIsSilent(t *testing.T) {
	logger := &MockLogger{}
	resolver := &MockResolver{err: device.ErrTypeNotSupported}
	sub, err := NewSubscriber(SubscriberOptions{
		MQTTClient: NewMockMQTTClient(),
		Resolver:   resolver,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}

	if err := sub.HandleMessage(triggeredTopic, []byte(`{"val":"1"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resolver.calls.Load() != 1 {
		t.Errorf("Resolve calls = %d, want 1", resolver.calls.Load())
	}
	if logger.count("warn")+logger.count("error") != 0 {
		t.Errorf("unexpected log lines: %+v", logger.entries)
	}
	if sub.Stats().Unsupported != 1 {
		t.Errorf("Stats() = %+v", sub.Stats())
	}
}

func TestSubscriber_UnregisteredCameraTypeIsSilent(t *testing.T) {
	repo := NewMockRepository()
	registry := device.NewRegistry(repo, device.NewTypeRegistry(), nil)
	sub, err := NewSubscriber(SubscriberOptions{MQTTClient: NewMockMQTTClient(), Resolver: registry})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}

	if err := sub.HandleMessage(triggeredTopic, []byte(`{"val":"1"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if repo.saves.Load() != 0 {
		t.Error("unsupported camera saved")
	}
}

func TestSubscriber_RepositoryFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.repo.saveErr = errors.New("database is locked")

	err := h.mqtt.SimulateMessage(triggeredTopic, []byte(`{"val":"1"}`))
	if !errors.Is(err, h.repo.saveErr) {
		t.Fatalf("HandleMessage() error = %v, want wrapped save error", err)
	}
	if h.pub.total() != 0 {
		t.Error("events published after failed save")
	}
	if h.logger.count("error") == 0 {
		t.Error("repository failure not logged")
	}
	if h.sub.Stats().Failures != 1 {
		t.Errorf("Stats() = %+v", h.sub.Stats())
	}

	// The next message retries creation.
	h.repo.saveErr = nil
	h.send(t, triggeredTopic, `{"val":"1"}`)
	if h.registry.Count() != 1 {
		t.Error("camera not created on retry")
	}
}

func TestSubscriber_DeviceWithoutMotion(t *testing.T) {
	d := device.NewDevice(CameraID(testCameraID), "bare", nil)
	sub, err := NewSubscriber(SubscriberOptions{
		MQTTClient: NewMockMQTTClient(),
		Resolver:   &MockResolver{device: d},
	})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}

	if err := sub.HandleMessage(triggeredTopic, []byte(`{"val":"1"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if sub.Stats().Failures != 1 {
		t.Errorf("Stats() = %+v", sub.Stats())
	}
}

func TestSubscriber_ConcurrentFirstSight(t *testing.T) {
	h := newHarness(t)

	const messages = 40
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < messages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			payload := `{"val":"1"}`
			if i%2 == 0 {
				payload = `{"val":"0"}`
			}
			if err := h.mqtt.SimulateMessage(triggeredTopic, []byte(payload)); err != nil {
				t.Errorf("SimulateMessage() error = %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := h.repo.saves.Load(); n != 1 {
		t.Errorf("Save calls = %d, want 1", n)
	}
	if n := len(h.pub.ofType(device.EventTypeDeviceCreated)); n != 1 {
		t.Errorf("device created events = %d, want 1", n)
	}
	if n := len(h.pub.ofType(device.EventTypeMotionDetected)); n != messages {
		t.Errorf("motion events = %d, want %d", n, messages)
	}
	if got := h.sub.Stats(); got.Accepted != messages {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestSubscriber_WithEventBus(t *testing.T) {
	bus := event.NewBus()
	var motionEvents atomic.Int32
	bus.Subscribe(device.EventTypeMotionDetected, func(event.Event) { motionEvents.Add(1) })

	types := device.NewTypeRegistry()
	if err := Register(types, bus); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	registry := device.NewRegistry(NewMockRepository(), types, bus)

	client := NewMockMQTTClient()
	sub, err := NewSubscriber(SubscriberOptions{MQTTClient: client, Resolver: registry})
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, payload := range []string{`{"val":"3"}`, `{"val":"3"}`, `{"val":"0"}`} {
		if err := client.SimulateMessage(triggeredTopic, []byte(payload)); err != nil {
			t.Fatalf("SimulateMessage() error = %v", err)
		}
	}

	if motionEvents.Load() != 3 {
		t.Errorf("motion events on bus = %d, want 3", motionEvents.Load())
	}
}
