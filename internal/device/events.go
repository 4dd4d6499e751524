package device

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by this package.
const (
	EventTypeDeviceCreated  = "device_created"
	EventTypeMotionDetected = "motion_detected"
)

// DeviceCreatedEvent is published once when a device is first registered.
type DeviceCreatedEvent struct {
	ID          string    `json:"id"`
	Device      DeviceID  `json:"device"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewDeviceCreatedEvent builds the creation event for d.
func NewDeviceCreatedEvent(d *Device) DeviceCreatedEvent {
	return DeviceCreatedEvent{
		ID:          uuid.NewString(),
		Device:      d.ID(),
		DisplayName: d.DisplayName(),
		Timestamp:   d.CreatedAt(),
	}
}

func (e DeviceCreatedEvent) EventType() string     { return EventTypeDeviceCreated }
func (e DeviceCreatedEvent) OccurredAt() time.Time { return e.Timestamp }
func (e DeviceCreatedEvent) EventID() string       { return e.ID }

// MotionDetectedEvent reports one motion reading. Value false means the
// camera reported no motion.
type MotionDetectedEvent struct {
	ID        string     `json:"id"`
	Property  PropertyID `json:"property"`
	Value     bool       `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewMotionDetectedEvent builds a motion event for property.
func NewMotionDetectedEvent(property PropertyID, value bool, ts time.Time) MotionDetectedEvent {
	return MotionDetectedEvent{
		ID:        uuid.NewString(),
		Property:  property,
		Value:     value,
		Timestamp: ts,
	}
}

func (e MotionDetectedEvent) EventType() string     { return EventTypeMotionDetected }
func (e MotionDetectedEvent) OccurredAt() time.Time { return e.Timestamp }
func (e MotionDetectedEvent) EventID() string       { return e.ID }

// StateKey names the device whose retained state this event updates.
func (e MotionDetectedEvent) StateKey() string { return e.Property.Device.String() }

// StatePayload is the retained device state after this reading.
func (e MotionDetectedEvent) StatePayload() any {
	return map[string]MotionState{
		e.Property.Key: {Detected: e.Value, LastMotionDetected: e.Timestamp},
	}
}
