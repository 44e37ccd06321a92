// Package bus moves notifications out of the MIDI callback context.
//
// Publish never blocks: events go into a bounded buffer and are dropped when
// it is full. A single dispatcher (Run) delivers them in publish order to
// every subscriber.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"ccremote/midi"
)

// Kind of event
type Kind int

const (
	KindControlChange Kind = iota
	KindDevicesChanged
)

func (k Kind) String() string {
	switch k {
	case KindControlChange:
		return "cc"
	case KindDevicesChanged:
		return "devices-changed"
	}
	return "unknown"
}

// Event is what subscribers receive. CC is only set for KindControlChange.
type Event struct {
	Kind Kind
	CC   midi.ControlChange
}

// ControlChange wraps a decoded message
func ControlChange(msg midi.ControlChange) Event {
	return Event{Kind: KindControlChange, CC: msg}
}

// DevicesChanged signals the endpoint list changed
func DevicesChanged() Event {
	return Event{Kind: KindDevicesChanged}
}

const DefaultBuffer = 256

type subscriber struct {
	id     uint64
	fn     func(Event)
	active atomic.Bool
}

// Bus hands events from producers to one consuming goroutine
type Bus struct {
	in      chan Event
	log     *slog.Logger
	dropped atomic.Uint64

	mu     sync.Mutex
	subs   []*subscriber
	nextID uint64
}

// New creates a bus with the given buffer size (DefaultBuffer if <= 0)
func New(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		in:  make(chan Event, buffer),
		log: logger.With("component", "bus"),
	}
}

// Publish queues ev without blocking. Returns false if it was dropped.
func (b *Bus) Publish(ev Event) bool {
	select {
	case b.in <- ev:
		return true
	default:
		n := b.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			b.log.Warn("event dropped, consumer too slow", "kind", ev.Kind, "dropped", n)
		}
		return false
	}
}

// Dropped returns how many events Publish discarded
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe registers fn. The returned func unsubscribes and may be called
// from inside fn.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &subscriber{id: b.nextID, fn: fn}
	s.active.Store(true)
	b.subs = append(b.subs, s)
	return func() { b.unsubscribe(s) }
}

func (b *Bus) unsubscribe(s *subscriber) {
	if !s.active.Swap(false) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the current subscriber count
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run dispatches until ctx is done. Only one Run may be active.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.in:
			b.dispatch(ev)
		}
	}
}

// Drain dispatches everything queued right now and returns the count.
// Useful for a consumer that owns its own loop.
func (b *Bus) Drain() int {
	n := 0
	for {
		select {
		case ev := <-b.in:
			b.dispatch(ev)
			n++
		default:
			return n
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.fn(ev)
		}
	}
}
