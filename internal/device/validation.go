package device

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxIdentifierLength = 128
	maxNameLength       = 100
)

// ValidateDeviceID checks that id can be used as a key and inside topics.
// Separators and MQTT wildcards are rejected.
func ValidateDeviceID(id DeviceID) error {
	if id.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidDeviceID)
	}
	if id.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDeviceID)
	}
	if len(id.ID) > maxIdentifierLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidDeviceID, maxIdentifierLength)
	}
	if strings.ContainsAny(id.ID, "/+#") {
		return fmt.Errorf("%w: id %q contains a topic separator or wildcard", ErrInvalidDeviceID, id.ID)
	}
	if strings.IndexFunc(id.ID, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: id contains control characters", ErrInvalidDeviceID)
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}
