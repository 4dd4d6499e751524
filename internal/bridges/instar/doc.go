// Package instar ingests alarm telemetry from Instar IP cameras.
//
// Instar cameras publish their alarm state over MQTT under a fixed root
// topic:
//
//	instar/<deviceId>/status/alarm            {"val":"1"}
//	instar/<deviceId>/status/alarm/triggered  {"val":"0"}
//
// The deviceId is the camera's MAC address without separators. A val
// greater than zero means motion.
//
// # Pipeline
//
// The Subscriber handles each message in a fixed order:
//
//  1. An empty payload (a retained message being cleared) is dropped silently.
//  2. ParseTopic rejects topics outside the alarm shape. These are normal
//     traffic under the root topic and are logged at debug level.
//  3. The Decoder turns the payload into a boolean. A malformed payload is
//     logged at warn level and dropped. Nothing is created or mutated.
//  4. The device resolver returns the camera, creating and saving it on
//     first sight. An unsupported type is dropped silently.
//  5. The camera's motion sensor is set with the current time, which
//     publishes a motion_detected event.
//
// Errors never propagate to the MQTT transport except repository
// failures, which the transport logs.
//
// # Device Type
//
// Register adds the "instar-camera" type to a device.TypeRegistry. Every
// camera carries one MotionSensor capability with property id
// (deviceId, "motion").
//
// # Thread Safety
//
// HandleMessage may be called concurrently for the same or different
// cameras. No lock is held while decoding or publishing.
package instar
