// Package repository holds the in-memory device registry shared between the
// tool dispatch path and the UI layer.
package repository

import (
	"errors"
	"strings"
	"sync"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// ErrDeviceNotFound is returned when a mutation targets an unknown device ID.
var ErrDeviceNotFound = errors.New("device not found")

// Observer is notified after a device mutation has been applied. Callbacks
// run on the mutating goroutine and must not call back into the registry.
type Observer func(device entities.Device)

// DeviceRegistry is an in-memory mapping of device identity to controllable
// state. Devices are created once at process start and never destroyed during
// a session; only IsOn and Value change afterwards. Reads may interleave with
// mutations from the dispatch path or the UI.
type DeviceRegistry struct {
	mu        sync.RWMutex
	devices   map[string]*entities.Device
	order     []string
	observers []Observer
}

// NewDeviceRegistry creates a registry seeded with the given devices, kept in
// the order supplied. The order is significant: fuzzy lookups resolve
// ambiguous queries to the first match in this order.
func NewDeviceRegistry(devices []entities.Device) *DeviceRegistry {
	r := &DeviceRegistry{
		devices: make(map[string]*entities.Device, len(devices)),
		order:   make([]string, 0, len(devices)),
	}
	for _, d := range devices {
		if _, exists := r.devices[d.ID]; exists {
			continue
		}
		deviceCopy := d
		r.devices[d.ID] = &deviceCopy
		r.order = append(r.order, d.ID)
	}
	return r
}

// Subscribe registers an observer for device mutations. Intended for the UI
// hub; registered before any session starts.
func (r *DeviceRegistry) Subscribe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// FindByFuzzyName returns the first device, in registry order, whose display
// name case-insensitively contains query. Ambiguous substrings deliberately
// resolve to the first match.
func (r *DeviceRegistry) FindByFuzzyName(query string) (entities.Device, bool) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return entities.Device{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		d := r.devices[id]
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return *d, true
		}
	}
	return entities.Device{}, false
}

// Get returns a snapshot of a single device.
func (r *DeviceRegistry) Get(id string) (entities.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return entities.Device{}, false
	}
	return *d, true
}

// List returns a snapshot of all devices in registry order.
func (r *DeviceRegistry) List() []entities.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.devices[id])
	}
	return out
}

// SetPower switches a device on or off. Idempotent; mutates only IsOn.
func (r *DeviceRegistry) SetPower(id string, on bool) (entities.Device, error) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return entities.Device{}, ErrDeviceNotFound
	}
	d.IsOn = on
	snapshot := *d
	observers := r.observers
	r.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
	return snapshot, nil
}

// SetValue stores the scalar value verbatim; mutates only Value. The registry
// imposes no range invariant, callers decide their own clamping policy.
func (r *DeviceRegistry) SetValue(id string, value float64) (entities.Device, error) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return entities.Device{}, ErrDeviceNotFound
	}
	v := value
	d.Value = &v
	snapshot := *d
	observers := r.observers
	r.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
	return snapshot, nil
}
