package device

import (
	"maps"
	"sync"
	"time"
)

// Type names a family of devices handled by one factory, e.g. "instar-camera".
type Type string

// DeviceID is the identity of a device: the vendor identifier taken from
// the wire plus the device type.
type DeviceID struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

// String returns "<type>-<id>", which is also the default display name.
func (id DeviceID) String() string {
	return string(id.Type) + "-" + id.ID
}

// key is collision free, unlike String ("a-b"+"c" vs "a"+"b-c").
func (id DeviceID) key() string {
	return string(id.Type) + "\x00" + id.ID
}

// PropertyKeyMotion is the property key of the motion sensor capability.
const PropertyKeyMotion = "motion"

// PropertyID addresses one capability of one device.
type PropertyID struct {
	Device DeviceID `json:"device"`
	Key    string   `json:"key"`
}

func (p PropertyID) String() string {
	return p.Device.String() + ":" + p.Key
}

// Capability is a state facet composed onto a device.
type Capability interface {
	PropertyID() PropertyID
	Label() string
}

// Device is a registered camera (or other device). Identity, custom
// identifiers and creation time are fixed; the display name may change.
//
// A Device is shared by the registry and the bridges and is safe for
// concurrent use.
type Device struct {
	id                DeviceID
	customIdentifiers map[string]string
	createdAt         time.Time

	mu           sync.RWMutex
	displayName  string
	capabilities []Capability
}

// NewDevice creates a device without capabilities. Factories add them
// with AddCapability before handing the device out.
func NewDevice(id DeviceID, displayName string, customIdentifiers map[string]string) *Device {
	ids := make(map[string]string, len(customIdentifiers))
	maps.Copy(ids, customIdentifiers)

	return &Device{
		id:                id,
		customIdentifiers: ids,
		createdAt:         time.Now().UTC(),
		displayName:       displayName,
	}
}

// ID returns the device identity.
func (d *Device) ID() DeviceID {
	return d.id
}

// DisplayName returns the current display name.
func (d *Device) DisplayName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.displayName
}

// SetDisplayName changes the display name in memory. Registry.Rename also persists it.
func (d *Device) SetDisplayName(name string) {
	d.mu.Lock()
	d.displayName = name
	d.mu.Unlock()
}

// CustomIdentifiers returns a copy of the informational identifiers.
func (d *Device) CustomIdentifiers() map[string]string {
	return maps.Clone(d.customIdentifiers)
}

// CreatedAt returns when the device was first registered.
func (d *Device) CreatedAt() time.Time {
	return d.createdAt
}

// AddCapability attaches c to the device.
func (d *Device) AddCapability(c Capability) {
	d.mu.Lock()
	d.capabilities = append(d.capabilities, c)
	d.mu.Unlock()
}

// Capabilities returns the attached capabilities in the order they were added.
func (d *Device) Capabilities() []Capability {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Capability, len(d.capabilities))
	copy(out, d.capabilities)
	return out
}

// Motion returns the device's motion sensor, if it has one.
func (d *Device) Motion() (*MotionSensor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.capabilities {
		if m, ok := c.(*MotionSensor); ok {
			return m, true
		}
	}
	return nil, false
}

// Record returns the persistent view of the device.
func (d *Device) Record() Record {
	return Record{
		ID:                d.id,
		DisplayName:       d.DisplayName(),
		CustomIdentifiers: d.CustomIdentifiers(),
		CreatedAt:         d.createdAt,
	}
}

// Record is a device as stored by a Repository.
type Record struct {
	ID                DeviceID
	DisplayName       string
	CustomIdentifiers map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
