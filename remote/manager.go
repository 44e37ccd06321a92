// Package remote owns the MIDI remote-control state: the transport, the
// device registry, the connection, the event bus and the controllers.
//
// A Manager moves through Init -> Ready -> TornDown. UIs (the TUI, the
// console, the MQTT bridge) hold a *Manager and use only its methods.
package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"ccremote/bus"
	"ccremote/controller"
	"ccremote/midi"
)

// Lifecycle of a Manager
type Lifecycle int32

const (
	StateInit Lifecycle = iota
	StateReady
	StateTornDown
)

func (s Lifecycle) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn-down"
	}
	return "unknown"
}

var (
	ErrAlreadyStarted = errors.New("remote: already started")
	ErrClosed         = errors.New("remote: closed")
)

// Options configure a Manager
type Options struct {
	Definitions []controller.Definition
	// AutoConnect is a device name connected to whenever nothing is connected
	AutoConnect string
	EventBuffer int
	Logger      *slog.Logger
}

// Manager is the owned state object passed to every UI
type Manager struct {
	transport   midi.Transport
	devices     *midi.Registry
	conn        *midi.ConnectionManager
	bus         *bus.Bus
	controllers *controller.Registry
	defs        []controller.Definition
	autoConnect string
	log         *slog.Logger

	state     atomic.Int32
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New wires the core around t. Nothing runs until Start.
func New(t midi.Transport, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		transport:   t,
		defs:        opts.Definitions,
		autoConnect: opts.AutoConnect,
		log:         logger.With("component", "remote"),
	}
	m.bus = bus.New(opts.EventBuffer, logger)
	m.conn = midi.NewConnectionManager(t, func(msg midi.ControlChange) {
		m.bus.Publish(bus.ControlChange(msg))
	}, logger)
	m.devices = midi.NewRegistry(t)
	m.devices.OnChange(func() {
		m.bus.Publish(bus.DevicesChanged())
	})
	m.controllers = controller.NewRegistry(m.conn, logger)
	return m
}

// Start registers the definitions, starts dispatching events and makes a
// first auto-connect attempt.
func (m *Manager) Start(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateInit), int32(StateReady)) {
		if m.State() == StateTornDown {
			return ErrClosed
		}
		return ErrAlreadyStarted
	}

	for _, d := range m.defs {
		m.controllers.Register(d.ID, d.DefaultChannel)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.bus.Subscribe(m.handle)
	go func() {
		defer close(m.done)
		m.bus.Run(ctx)
	}()

	if m.autoConnect != "" {
		m.tryAutoConnect(m.devices.Enumerate())
	}
	m.log.Info("ready", "controllers", len(m.defs))
	return nil
}

// handle runs on the bus goroutine
func (m *Manager) handle(ev bus.Event) {
	switch ev.Kind {
	case bus.KindControlChange:
		m.controllers.Route(ev.CC)
	case bus.KindDevicesChanged:
		m.reconcile()
	}
}

// reconcile drops a connection whose endpoints vanished and retries
// auto-connect while disconnected.
func (m *Manager) reconcile() {
	if m.State() != StateReady {
		return
	}
	conn := m.conn.Current()
	if !conn.IsZero() && !m.stillPresent(conn) {
		m.log.Warn("connected device disappeared")
		m.conn.Disconnect()
	}
	if m.autoConnect != "" && m.conn.State() == midi.Disconnected {
		m.tryAutoConnect(m.devices.Enumerate())
	}
}

func (m *Manager) stillPresent(conn midi.Connection) bool {
	if conn.Destination != nil {
		return containsEndpoint(m.transport.Destinations(), *conn.Destination)
	}
	return containsEndpoint(m.transport.Sources(), *conn.Source)
}

// containsEndpoint matches on name as well as id; an id that now names a
// different port is a different device.
func containsEndpoint(eps []midi.Endpoint, want midi.Endpoint) bool {
	for _, ep := range eps {
		if ep.ID == want.ID && ep.Name == want.Name {
			return true
		}
	}
	return false
}

func (m *Manager) tryAutoConnect(devices []midi.Device) {
	for _, d := range devices {
		if d.Name != m.autoConnect {
			continue
		}
		if m.conn.Connect(d.ID) {
			m.log.Info("auto-connected", "device", d.Name)
		}
		return
	}
}

// State returns the lifecycle state
func (m *Manager) State() Lifecycle {
	return Lifecycle(m.state.Load())
}

// ListDevices returns a fresh device snapshot
func (m *Manager) ListDevices() []midi.Device {
	if m.State() == StateTornDown {
		return nil
	}
	return m.devices.Enumerate()
}

// Connect binds the device with id. Returns false if nothing was bound.
func (m *Manager) Connect(id midi.EndpointID) bool {
	if m.State() == StateTornDown {
		return false
	}
	return m.conn.Connect(id)
}

// Disconnect drops the current binding
func (m *Manager) Disconnect() {
	m.conn.Disconnect()
}

// Connection returns the current binding
func (m *Manager) Connection() midi.Connection {
	return m.conn.Current()
}

// Send sets cc on a controller, transmitting if connected
func (m *Manager) Send(controllerID string, cc int, value float64) {
	if m.State() == StateTornDown {
		return
	}
	m.controllers.Send(controllerID, cc, value)
}

// RegisterController adds a controller; the first registration wins
func (m *Manager) RegisterController(id string, defaultChannel int) {
	m.controllers.Register(id, defaultChannel)
}

// SetChannel reassigns a controller's MIDI channel
func (m *Manager) SetChannel(id string, channel int) {
	m.controllers.SetChannel(id, channel)
}

// Controller returns a copy of a controller's channel and cached values
func (m *Manager) Controller(id string) (controller.State, bool) {
	return m.controllers.Get(id)
}

// ControllerIDs returns registered controllers in registration order
func (m *Manager) ControllerIDs() []string {
	return m.controllers.IDs()
}

// Definitions returns the layouts the manager was built with
func (m *Manager) Definitions() []controller.Definition {
	return m.defs
}

// Definition finds a layout by controller id
func (m *Manager) Definition(id string) (controller.Definition, bool) {
	for _, d := range m.defs {
		if d.ID == id {
			return d, true
		}
	}
	return controller.Definition{}, false
}

// Subscribe receives every event after the manager has applied it
func (m *Manager) Subscribe(fn func(bus.Event)) func() {
	return m.bus.Subscribe(fn)
}

// Dropped reports events lost to a full bus
func (m *Manager) Dropped() uint64 {
	return m.bus.Dropped()
}

// Close stops dispatching and tears down the transport. Idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		prev := Lifecycle(m.state.Swap(int32(StateTornDown)))
		if prev == StateReady {
			m.cancel()
			<-m.done
		}
		m.closeErr = m.conn.Teardown()
		m.log.Info("torn down")
	})
	return m.closeErr
}
