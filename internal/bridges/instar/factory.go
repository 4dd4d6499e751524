package instar

import (
	"github.com/nerrad567/gray-logic-instar/internal/device"
	"github.com/nerrad567/gray-logic-instar/internal/event"
)

// Identity of the Instar integration.
const (
	// DefaultRootTopic is the first topic segment Instar cameras publish under.
	DefaultRootTopic = "instar"

	// DeviceTypeCamera is the device type of every Instar camera.
	DeviceTypeCamera device.Type = "instar-camera"
)

// NewDeviceFactory returns the factory for DeviceTypeCamera. Cameras
// publish motion events to publisher.
func NewDeviceFactory(publisher event.Publisher) device.Factory {
	return func(id device.DeviceID, displayName string, customIdentifiers map[string]string) *device.Device {
		d := device.NewDevice(id, displayName, customIdentifiers)
		d.AddCapability(device.NewMotionSensor(id, publisher))
		return d
	}
}

// Register adds DeviceTypeCamera to types.
func Register(types *device.TypeRegistry, publisher event.Publisher) error {
	return types.Register(DeviceTypeCamera, NewDeviceFactory(publisher))
}

// CameraID returns the device id of the camera with the given topic id.
func CameraID(deviceID string) device.DeviceID {
	return device.DeviceID{ID: deviceID, Type: DeviceTypeCamera}
}
