package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-instar/internal/event"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TypeCatalog is the set of device types the registry can build.
// *TypeRegistry implements it.
type TypeCatalog interface {
	Supports(t Type) bool
	Create(id DeviceID, displayName string, customIdentifiers map[string]string) (*Device, error)
}

// Registry resolves DeviceIDs to live devices, creating and persisting
// them on first sight.
//
// The cache is authoritative for this process; the repository is the
// source of truth across restarts. All methods are safe for concurrent use.
type Registry struct {
	repo      Repository
	types     TypeCatalog
	publisher event.Publisher

	cache   map[DeviceID]*Device
	cacheMu sync.RWMutex

	// creating collapses concurrent first-sight resolutions of one device
	// into a single repository lookup and save.
	creating singleflight.Group

	logger Logger
}

// NewRegistry creates a device registry. publisher receives
// DeviceCreatedEvents and is handed to factories; it may be nil.
func NewRegistry(repo Repository, types TypeCatalog, publisher event.Publisher) *Registry {
	return &Registry{
		repo:      repo,
		types:     types,
		publisher: publisher,
		cache:     make(map[DeviceID]*Device),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve returns the device for id, creating it if it has never been seen.
//
// A new device gets the display name id.String(), is saved once and
// announced with one DeviceCreatedEvent. A device already in the
// repository is loaded without saving or announcing it. Concurrent calls
// for the same id share one resolution; calls for other ids are not blocked.
//
// Errors: ErrInvalidDeviceID, ErrTypeNotSupported, or a wrapped repository
// error. Nothing is cached when the save fails, so the next call retries.
func (r *Registry) Resolve(ctx context.Context, id DeviceID) (*Device, error) {
	if err := ValidateDeviceID(id); err != nil {
		return nil, err
	}
	if !r.types.Supports(id.Type) {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotSupported, id.Type)
	}

	if d, ok := r.cached(id); ok {
		return d, nil
	}

	v, err, _ := r.creating.Do(id.key(), func() (any, error) {
		// A flight for this id may have finished since the check above.
		if d, ok := r.cached(id); ok {
			return d, nil
		}

		rec, err := r.repo.GetByID(ctx, id)
		switch {
		case err == nil:
			d, err := r.hydrate(*rec)
			if err != nil {
				return nil, err
			}
			r.store(d)
			return d, nil
		case !errors.Is(err, ErrDeviceNotFound):
			return nil, fmt.Errorf("looking up device %s: %w", id, err)
		}

		return r.create(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Device), nil //nolint:forcetypeassert // flights only return *Device
}

func (r *Registry) create(ctx context.Context, id DeviceID) (*Device, error) {
	d, err := r.types.Create(id, id.String(), nil)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Save(ctx, d); err != nil {
		r.logger.Error("saving new device failed", "device", id.String(), "error", err)
		return nil, fmt.Errorf("registering device %s: %w", id, err)
	}

	r.store(d)
	r.logger.Info("device created", "device", id.String(), "display_name", d.DisplayName())

	if r.publisher != nil {
		r.publisher.Publish(NewDeviceCreatedEvent(d))
	}
	return d, nil
}

// hydrate rebuilds a live device from its stored record.
func (r *Registry) hydrate(rec Record) (*Device, error) {
	d, err := r.types.Create(rec.ID, rec.DisplayName, rec.CustomIdentifiers)
	if err != nil {
		return nil, err
	}
	d.createdAt = rec.CreatedAt
	return d, nil
}

func (r *Registry) cached(id DeviceID) (*Device, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	d, ok := r.cache[id]
	return d, ok
}

func (r *Registry) store(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID()] = d
	r.cacheMu.Unlock()
}

// RefreshCache loads every stored device of a supported type so that
// lookups and motion state are available before the first message.
// Devices already cached are kept as they are.
func (r *Registry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	loaded, skipped := 0, 0
	for _, rec := range records {
		if !r.types.Supports(rec.ID.Type) {
			skipped++
			continue
		}
		if _, ok := r.cached(rec.ID); ok {
			continue
		}

		d, err := r.hydrate(rec)
		if err != nil {
			return fmt.Errorf("loading device %s: %w", rec.ID, err)
		}

		r.cacheMu.Lock()
		if _, ok := r.cache[rec.ID]; !ok {
			r.cache[rec.ID] = d
			loaded++
		}
		r.cacheMu.Unlock()
	}

	r.logger.Info("device cache refreshed", "loaded", loaded, "skipped_unsupported", skipped)
	return nil
}

// Get returns a known device without creating it.
func (r *Registry) Get(id DeviceID) (*Device, error) {
	if d, ok := r.cached(id); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// List returns the known devices ordered by type then id.
func (r *Registry) List() []*Device {
	r.cacheMu.RLock()
	devices := make([]*Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, d)
	}
	r.cacheMu.RUnlock()

	slices.SortFunc(devices, func(a, b *Device) int {
		if c := strings.Compare(string(a.ID().Type), string(b.ID().Type)); c != 0 {
			return c
		}
		return strings.Compare(a.ID().ID, b.ID().ID)
	})
	return devices
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Rename changes a device's display name and persists it. The in-memory
// name is restored if the save fails.
func (r *Registry) Rename(ctx context.Context, id DeviceID, name string) (*Device, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	d, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	previous := d.DisplayName()
	d.SetDisplayName(strings.TrimSpace(name))

	if err := r.repo.Save(ctx, d); err != nil {
		d.SetDisplayName(previous)
		return nil, fmt.Errorf("renaming device %s: %w", id, err)
	}

	r.logger.Info("device renamed", "device", id.String(), "display_name", d.DisplayName())
	return d, nil
}
