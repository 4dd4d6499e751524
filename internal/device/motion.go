package device

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/event"
)

// MotionLabel is the human-readable label of the motion capability.
const MotionLabel = "Motion State"

// MotionState is one motion reading.
type MotionState struct {
	Detected           bool      `json:"detected"`
	LastMotionDetected time.Time `json:"last_motion_detected"`
}

// MotionSensor holds the latest motion reading of one device.
//
// The reading (timestamp and value) is replaced as one unit. Every
// accepted update publishes a MotionDetectedEvent, including repeats of
// the same value; consumers debounce if they need to. Updates racing for
// the same device are applied in arrival order with no monotonicity check.
type MotionSensor struct {
	property  PropertyID
	publisher event.Publisher

	mu    sync.RWMutex
	state MotionState
	set   bool
}

// NewMotionSensor creates the motion capability for device. A nil
// publisher disables event publication.
func NewMotionSensor(device DeviceID, publisher event.Publisher) *MotionSensor {
	return &MotionSensor{
		property:  PropertyID{Device: device, Key: PropertyKeyMotion},
		publisher: publisher,
	}
}

// PropertyID returns (device, "motion").
func (m *MotionSensor) PropertyID() PropertyID {
	return m.property
}

// Label returns MotionLabel.
func (m *MotionSensor) Label() string {
	return MotionLabel
}

// SetMotionDetected stores (ts, detected) and publishes a MotionDetectedEvent.
// The lock is released before publishing.
func (m *MotionSensor) SetMotionDetected(ts time.Time, detected bool) {
	m.mu.Lock()
	m.state = MotionState{Detected: detected, LastMotionDetected: ts}
	m.set = true
	m.mu.Unlock()

	if m.publisher != nil {
		m.publisher.Publish(NewMotionDetectedEvent(m.property, detected, ts))
	}
}

// LastMotionDetected returns the timestamp of the latest reading, or
// false before the first one.
func (m *MotionSensor) LastMotionDetected() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.LastMotionDetected, m.set
}

// State returns the latest reading, or false before the first one.
func (m *MotionSensor) State() (MotionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.set
}
