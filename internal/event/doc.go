// Package event is the in-process event bus of the Instar bridge.
//
// Domain packages publish typed events (device created, motion detected)
// and sinks subscribe to them: the MQTT forwarder, the InfluxDB writer,
// the motion history recorder and the WebSocket hub.
//
// Delivery is synchronous and fire-and-forget. Publish returns once every
// matching handler has run; a panicking handler is logged and skipped.
// Handlers that perform I/O must bound it themselves.
package event
