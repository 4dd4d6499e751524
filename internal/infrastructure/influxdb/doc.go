// Package influxdb provides InfluxDB connectivity for the Instar bridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes and health monitoring.
//
// # Purpose
//
// Motion readings and device lifecycle events are written as time series
// so that alarm activity can be graphed and aggregated per camera:
//
//	camera_motion,device_type=instar-camera,device_id=1234567890AB,property=motion detected=true,count=1i
//	device_events,device_type=instar-camera,device_id=1234567890AB,event=device_created value=1i
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time series
//	}
//	defer client.Close()
//
//	client.WriteMotion("instar-camera", "1234567890AB", "motion", true, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval. Write failures
// arrive asynchronously through SetOnError.
package influxdb
