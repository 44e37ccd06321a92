package midi

import "sync"

// Registry enumerates endpoints and merges them into devices
type Registry struct {
	t Transport

	mu        sync.Mutex
	callbacks []func()
}

// NewRegistry installs itself as the transport's change handler
func NewRegistry(t Transport) *Registry {
	r := &Registry{t: t}
	t.SetChangeHandler(r.notify)
	return r
}

// Enumerate returns a fresh snapshot. Destinations come first; a source is
// merged into an existing device only when the display names are identical.
// Two unrelated ports that happen to share a name are merged as well.
func (r *Registry) Enumerate() []Device {
	var devices []Device
	seen := make(map[EndpointID]bool)

	for _, ep := range r.t.Destinations() {
		if seen[ep.ID] {
			continue
		}
		seen[ep.ID] = true
		devices = append(devices, Device{ID: ep.ID, Name: ep.Name, IsDestination: true})
	}

	for _, ep := range r.t.Sources() {
		if i := indexByName(devices, ep.Name); i >= 0 {
			devices[i].IsSource = true
			continue
		}
		if seen[ep.ID] {
			continue
		}
		seen[ep.ID] = true
		devices = append(devices, Device{ID: ep.ID, Name: ep.Name, IsSource: true})
	}

	return devices
}

func indexByName(devices []Device, name string) int {
	for i := range devices {
		if devices[i].Name == name {
			return i
		}
	}
	return -1
}

// OnChange registers fn for add/remove/setup-changed notifications.
// fn carries no payload; call Enumerate for the new snapshot.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

func (r *Registry) notify() {
	r.mu.Lock()
	cbs := append([]func(){}, r.callbacks...)
	r.mu.Unlock()
	for _, fn := range cbs {
		fn()
	}
}
