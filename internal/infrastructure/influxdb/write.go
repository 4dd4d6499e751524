package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementMotion       = "camera_motion"
	MeasurementDeviceEvents = "device_events"
)

// WriteMotion records one motion reading.
//
// detected is stored both as a boolean and as 0/1 so it can be summed
// per window in Flux.
func (c *Client) WriteMotion(deviceType, deviceID, property string, detected bool, at time.Time) {
	count := 0
	if detected {
		count = 1
	}

	c.WritePointWithTime(
		MeasurementMotion,
		map[string]string{
			"device_type": deviceType,
			"device_id":   deviceID,
			"property":    property,
		},
		map[string]any{
			"detected": detected,
			"count":    count,
		},
		at,
	)
}

// WriteDeviceEvent records a lifecycle event such as a camera first seen.
func (c *Client) WriteDeviceEvent(deviceType, deviceID, eventType string, at time.Time) {
	c.WritePointWithTime(
		MeasurementDeviceEvents,
		map[string]string{
			"device_type": deviceType,
			"device_id":   deviceID,
			"event":       eventType,
		},
		map[string]any{
			"value": 1,
		},
		at,
	)
}

// WritePointWithTime queues one point on the batch writer. It is a no-op
// when the client is closed or was never connected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
