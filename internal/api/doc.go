// Package api implements the HTTP REST API and WebSocket server for the
// Instar bridge.
//
// This package provides:
//   - Read endpoints for cameras, their motion state and motion history
//   - Renaming cameras
//   - Bridge message counters and process metrics
//   - A WebSocket hub relaying bus events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// Cameras never talk to the API. They publish to MQTT, the Instar
// subscriber updates the device registry, and the registry and sensors
// publish events on the in-process bus. The hub subscribes to every bus
// event and broadcasts it on a channel named after the event type:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["motion_detected"]}}
//
// # Graceful Degradation
//
// Health checks, the motion history store and bridge stats are optional.
// Endpoints that need a missing collaborator return 503.
package api
