package controller

import (
	"log/slog"
	"maps"
	"sync"

	"ccremote/midi"
)

// Sender transmits encoded CC bytes. *midi.ConnectionManager satisfies it.
type Sender interface {
	Send(b [3]byte)
}

// State is a copy of one controller's channel and value cache
type State struct {
	Channel int
	Values  map[int]int
}

// Value returns the cached value for cc, 0 if never written
func (s State) Value(cc int) int {
	return s.Values[cc]
}

type entry struct {
	channel int
	values  map[int]int
}

// Registry holds one entry per logical controller and routes CC to them by channel
type Registry struct {
	out Sender
	log *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry creates an empty registry sending through out
func NewRegistry(out Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		out:     out,
		log:     logger.With("component", "controller"),
		entries: make(map[string]*entry),
	}
}

func validChannel(ch int) bool {
	return ch >= 1 && ch <= 16
}

// Register creates an entry. The first registration of an id wins.
func (r *Registry) Register(id string, defaultChannel int) {
	if !validChannel(defaultChannel) {
		r.log.Debug("register: channel out of range", "controller", id, "channel", defaultChannel)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return
	}
	r.entries[id] = &entry{channel: defaultChannel, values: make(map[int]int)}
	r.order = append(r.order, id)
}

// SetChannel reassigns a controller's channel. No wire traffic.
func (r *Registry) SetChannel(id string, channel int) {
	if !validChannel(channel) {
		r.log.Debug("set channel: out of range", "controller", id, "channel", channel)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.channel = channel
	}
}

// Send transmits cc=value on the controller's channel and records the value
// locally whether or not anything was connected. A cc outside 0-127 is
// dropped with nothing sent or cached; it is not masked into range, since
// cc&0x7F would write some other parameter.
func (r *Registry) Send(id string, cc int, value float64) {
	if cc < 0 || cc > 127 {
		r.log.Debug("send: cc out of range", "controller", id, "cc", cc)
		return
	}
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	v := midi.ClampValue(value)
	e.values[cc] = int(v)
	ch := e.channel
	r.mu.Unlock()

	r.out.Send(midi.Encode(ch, cc, float64(v)))
}

// Route writes an inbound value into every controller on msg's channel
func (r *Registry) Route(msg midi.ControlChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.channel == int(msg.Channel) {
			e.values[int(msg.Controller)] = int(msg.Value)
		}
	}
}

// Get returns a copy of the controller's state
func (r *Registry) Get(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return State{}, false
	}
	return State{Channel: e.channel, Values: maps.Clone(e.values)}, true
}

// IDs returns registered ids in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
