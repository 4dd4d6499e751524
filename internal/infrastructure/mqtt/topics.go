package mqtt

import "fmt"

const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixCore is the root of core event and device topics.
	TopicPrefixCore = "graylogic/core"
)

// Instar camera topic segments. Cameras publish alarm status as
// <root>/<device-id>/status/alarm[/triggered].
const (
	InstarSegmentStatus    = "status"
	InstarSegmentAlarm     = "alarm"
	InstarSegmentTriggered = "triggered"
)

// Topics provides builders for the topics the bridge reads and writes.
//
//	topics := mqtt.Topics{}
//	topics.CoreEvent("motion_detected")
//	// graylogic/core/event/motion_detected
type Topics struct{}

// BridgeHealth returns the retained health topic for a bridge service.
//
// Example: graylogic/health/instar
func (Topics) BridgeHealth(service string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, service)
}

// CoreEvent returns the topic events of the given type are forwarded to.
//
// Example: graylogic/core/event/device_created
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// CoreDeviceState returns the retained state topic for one device.
//
// Example: graylogic/core/device/instar-camera-1234567890AB/state
func (Topics) CoreDeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCore, deviceID)
}

// InstarAll returns the wildcard subscription for every camera topic under root.
//
// Example: instar/#
func (Topics) InstarAll(root string) string {
	return root + "/#"
}
