package device

import "errors"

// Errors returned by the device package. Check with errors.Is.
var (
	// ErrDeviceNotFound is returned when no device exists for a DeviceID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrTypeNotSupported is returned when no factory is registered for a device type.
	// It is not a not-found condition: the identifier belongs to another subsystem.
	ErrTypeNotSupported = errors.New("device: type not supported")

	// ErrTypeRegistered is returned when registering a factory twice for one type.
	ErrTypeRegistered = errors.New("device: type already registered")

	// ErrInvalidDeviceID is returned for empty or malformed identifiers.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrInvalidName is returned when a display name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")
)
