package midi

import (
	"log/slog"
	"sync"
)

// State of the connection manager
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Connection is the active binding. Both fields nil means disconnected.
type Connection struct {
	Destination *Endpoint `json:"destination,omitempty"`
	Source      *Endpoint `json:"source,omitempty"`
}

// IsZero reports whether nothing is bound
func (c Connection) IsZero() bool {
	return c.Destination == nil && c.Source == nil
}

// ConnectionManager binds at most one destination (transmit) and one source
// (receive) at a time.
type ConnectionManager struct {
	t   Transport
	log *slog.Logger

	mu       sync.Mutex
	conn     Connection
	tornDown bool
}

// NewConnectionManager installs the receive callback on t. Every decoded
// Control Change is passed to handoff, which must not block.
func NewConnectionManager(t Transport, handoff func(ControlChange), logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &ConnectionManager{
		t:   t,
		log: logger.With("component", "midi"),
	}
	t.SetReceiveHandler(func(list EventList) {
		for msg := range Decode(list) {
			handoff(msg)
		}
	})
	return cm
}

// Connect resets any existing binding, then binds the destination with the
// given id plus the first source sharing its name. If no destination has that
// id, a source with that id is bound for receive only.
func (cm *ConnectionManager) Connect(id EndpointID) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.disconnectLocked()
	if cm.tornDown {
		return false
	}

	for _, ep := range cm.t.Destinations() {
		if ep.ID == id {
			dst := ep
			cm.conn.Destination = &dst
			break
		}
	}

	if cm.conn.Destination != nil {
		for _, ep := range cm.t.Sources() {
			if ep.Name == cm.conn.Destination.Name {
				cm.bindSourceLocked(ep)
				break
			}
		}
	} else {
		for _, ep := range cm.t.Sources() {
			if ep.ID == id {
				cm.bindSourceLocked(ep)
				break
			}
		}
	}

	ok := !cm.conn.IsZero()
	if ok {
		cm.log.Info("connected", "device", id, "destination", cm.conn.Destination != nil, "source", cm.conn.Source != nil)
	} else {
		cm.log.Debug("connect: no endpoint", "device", id)
	}
	return ok
}

func (cm *ConnectionManager) bindSourceLocked(ep Endpoint) {
	if err := cm.t.ConnectSource(ep.ID); err != nil {
		cm.log.Warn("bind source failed", "source", ep.Name, "error", err)
		return
	}
	cm.conn.Source = &ep
}

// Disconnect unbinds the source and clears the destination. Idempotent.
func (cm *ConnectionManager) Disconnect() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.disconnectLocked()
}

func (cm *ConnectionManager) disconnectLocked() {
	if cm.conn.Source != nil {
		if err := cm.t.DisconnectSource(cm.conn.Source.ID); err != nil {
			cm.log.Debug("unbind source", "source", cm.conn.Source.Name, "error", err)
		}
		cm.conn.Source = nil
	}
	if cm.conn.Destination != nil {
		cm.log.Info("disconnected", "destination", cm.conn.Destination.Name)
	}
	cm.conn.Destination = nil
}

// Send transmits b to the bound destination, fire-and-forget.
// It is a no-op when no destination is bound.
func (cm *ConnectionManager) Send(b [3]byte) {
	cm.mu.Lock()
	dst := cm.conn.Destination
	cm.mu.Unlock()
	if dst == nil {
		return
	}
	if err := cm.t.Send(dst.ID, b[:]); err != nil {
		cm.log.Debug("send dropped", "destination", dst.Name, "error", err)
	}
}

// Current returns a copy of the active binding
func (cm *ConnectionManager) Current() Connection {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	var c Connection
	if cm.conn.Destination != nil {
		d := *cm.conn.Destination
		c.Destination = &d
	}
	if cm.conn.Source != nil {
		s := *cm.conn.Source
		c.Source = &s
	}
	return c
}

// State reports Connected once at least one side is bound
func (cm *ConnectionManager) State() State {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn.IsZero() {
		return Disconnected
	}
	return Connected
}

// Teardown disconnects and releases the transport. The manager is unusable afterwards.
func (cm *ConnectionManager) Teardown() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.disconnectLocked()
	if cm.tornDown {
		return nil
	}
	cm.tornDown = true
	cm.t.SetReceiveHandler(nil)
	return cm.t.Close()
}
