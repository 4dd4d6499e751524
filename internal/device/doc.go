// Package device holds the bridge's device model and the registry that
// resolves devices from the identifiers seen on the wire.
//
// A Device is identified by a DeviceID (vendor identifier plus device
// type) and owns a set of capabilities. Capabilities are composed onto
// the device rather than inherited; the only one so far is MotionSensor,
// addressed by the PropertyID (device, "motion").
//
// # Resolution
//
// Registry.Resolve is the create-if-absent entry point used by protocol
// bridges:
//
//	dev, err := registry.Resolve(ctx, device.DeviceID{ID: "1234567890AB", Type: "instar-camera"})
//
// For a given DeviceID the repository is written at most once and a single
// DeviceCreatedEvent is published, however many goroutines race on the
// first message. Unknown types fail with ErrTypeNotSupported.
//
// # Persistence
//
// Repository stores device records (SQLiteRepository in production).
// MotionHistoryRepository keeps a bounded log of motion readings.
// Live motion state itself is held only in memory.
package device
