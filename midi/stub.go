package midi

import (
	"errors"
	"fmt"
	"sync"
)

// SimulatorName is the paired device a loopback Stub exposes
const SimulatorName = "Simulator (stub)"

var (
	// ErrEndpointNotFound is returned for an id the transport does not know
	ErrEndpointNotFound = errors.New("midi: endpoint not found")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("midi: transport closed")
)

// StubOptions configure a Stub
type StubOptions struct {
	// Loopback echoes sends back as input on a connected source with the
	// destination's name, and seeds a simulator device.
	Loopback bool
}

// Stub is an in-memory transport used when no native MIDI is available
// and as the test double for everything above the transport.
type Stub struct {
	mu        sync.Mutex
	nextID    EndpointID
	dests     []Endpoint
	srcs      []Endpoint
	connected map[EndpointID]bool
	sent      []SentMessage
	failBind  map[EndpointID]error
	loopback  bool
	closed    bool

	onChange  func()
	onReceive func(EventList)
}

// SentMessage records one Send call on a Stub
type SentMessage struct {
	Dst  EndpointID
	Data []byte
}

// NewStub creates an empty stub transport
func NewStub(opts StubOptions) *Stub {
	s := &Stub{
		connected: make(map[EndpointID]bool),
		failBind:  make(map[EndpointID]error),
		loopback:  opts.Loopback,
	}
	if opts.Loopback {
		s.addLocked(SimulatorName, true)
		s.addLocked(SimulatorName, false)
	}
	return s
}

// AddDestination adds an output endpoint and returns its id
func (s *Stub) AddDestination(name string) EndpointID {
	s.mu.Lock()
	id := s.addLocked(name, true)
	s.mu.Unlock()
	s.changed()
	return id
}

// AddSource adds an input endpoint and returns its id
func (s *Stub) AddSource(name string) EndpointID {
	s.mu.Lock()
	id := s.addLocked(name, false)
	s.mu.Unlock()
	s.changed()
	return id
}

func (s *Stub) addLocked(name string, dest bool) EndpointID {
	s.nextID++
	ep := Endpoint{ID: s.nextID, Name: name, IsDestination: dest, IsSource: !dest}
	if dest {
		s.dests = append(s.dests, ep)
	} else {
		s.srcs = append(s.srcs, ep)
	}
	return ep.ID
}

// Remove drops an endpoint; a connected source is unbound
func (s *Stub) Remove(id EndpointID) {
	s.mu.Lock()
	s.dests = removeEndpoint(s.dests, id)
	s.srcs = removeEndpoint(s.srcs, id)
	delete(s.connected, id)
	s.mu.Unlock()
	s.changed()
}

// Rename gives an existing endpoint a new name, as when a platform reuses
// an id for another port
func (s *Stub) Rename(id EndpointID, name string) {
	s.mu.Lock()
	for _, eps := range [][]Endpoint{s.dests, s.srcs} {
		for i := range eps {
			if eps[i].ID == id {
				eps[i].Name = name
			}
		}
	}
	s.mu.Unlock()
	s.changed()
}

func removeEndpoint(eps []Endpoint, id EndpointID) []Endpoint {
	out := eps[:0]
	for _, ep := range eps {
		if ep.ID != id {
			out = append(out, ep)
		}
	}
	return out
}

// FailConnect makes ConnectSource for id return err
func (s *Stub) FailConnect(id EndpointID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBind[id] = err
}

func (s *Stub) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Stub) Destinations() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Endpoint(nil), s.dests...)
}

func (s *Stub) Sources() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Endpoint(nil), s.srcs...)
}

func (s *Stub) SetChangeHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Stub) SetReceiveHandler(fn func(EventList)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReceive = fn
}

func (s *Stub) Send(dst EndpointID, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	dest, ok := findEndpoint(s.dests, dst)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrEndpointNotFound, dst)
	}
	s.sent = append(s.sent, SentMessage{Dst: dst, Data: append([]byte(nil), data...)})

	var echo EndpointID
	if s.loopback {
		for _, src := range s.srcs {
			if src.Name == dest.Name && s.connected[src.ID] {
				echo = src.ID
				break
			}
		}
	}
	s.mu.Unlock()

	if echo != 0 {
		if w, ok := Word(0, data); ok {
			s.Inject(echo, NewEventList(w))
		}
	}
	return nil
}

func (s *Stub) ConnectSource(src EndpointID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := findEndpoint(s.srcs, src); !ok {
		return fmt.Errorf("%w: %d", ErrEndpointNotFound, src)
	}
	if err := s.failBind[src]; err != nil {
		return err
	}
	s.connected[src] = true
	return nil
}

func (s *Stub) DisconnectSource(src EndpointID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connected, src)
	return nil
}

// Inject delivers a buffer as if it arrived from src. Nothing is delivered
// unless src is bound to the input port.
func (s *Stub) Inject(src EndpointID, list EventList) bool {
	s.mu.Lock()
	fn := s.onReceive
	live := s.connected[src] && !s.closed
	s.mu.Unlock()
	if !live || fn == nil {
		return false
	}
	fn(list)
	return true
}

// IsConnected reports whether src is bound to the input port
func (s *Stub) IsConnected(src EndpointID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected[src]
}

// ConnectedSources returns every bound source id
func (s *Stub) ConnectedSources() []EndpointID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []EndpointID
	for _, ep := range s.srcs {
		if s.connected[ep.ID] {
			ids = append(ids, ep.ID)
		}
	}
	return ids
}

// Sent returns a copy of every message passed to Send
func (s *Stub) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// Closed reports whether Close was called
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.connected = make(map[EndpointID]bool)
	s.onReceive = nil
	s.onChange = nil
	return nil
}

func findEndpoint(eps []Endpoint, id EndpointID) (Endpoint, bool) {
	for _, ep := range eps {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}
