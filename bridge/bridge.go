// Package bridge mirrors the remote over MQTT: inbound CC values and device
// state are published, and set/channel/connect topics drive the manager.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"ccremote/bus"
	"ccremote/midi"
	"ccremote/remote"
)

// Broker is the part of *Client the bridge uses
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Bridge connects a remote.Manager to a Broker
type Bridge struct {
	broker Broker
	mgr    *remote.Manager
	topics Topics
	log    *slog.Logger

	events chan bus.Event
	unsub  func()
}

const eventBuffer = 256

// New creates a bridge publishing under prefix
func New(broker Broker, mgr *remote.Manager, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		broker: broker,
		mgr:    mgr,
		topics: Topics{Prefix: prefix},
		log:    logger.With("component", "bridge"),
		events: make(chan bus.Event, eventBuffer),
	}
}

// Run subscribes to the command topics, publishes the current state and
// forwards bus events until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	subs := []struct {
		topic   string
		handler MessageHandler
	}{
		{b.topics.Set(), b.handleSet},
		{b.topics.Channel(), b.handleChannel},
		{b.topics.Connect(), b.handleConnect},
	}
	for _, s := range subs {
		if err := b.broker.Subscribe(s.topic, s.handler); err != nil {
			return err
		}
	}

	// Publishing can block on the network; keep it off the bus goroutine.
	b.unsub = b.mgr.Subscribe(func(ev bus.Event) {
		select {
		case b.events <- ev:
		default:
			b.log.Warn("event dropped", "kind", ev.Kind)
		}
	})
	defer b.unsub()

	b.publishDevices()
	b.publishConnection()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.events:
			b.forward(ev)
		}
	}
}

func (b *Bridge) forward(ev bus.Event) {
	switch ev.Kind {
	case bus.KindControlChange:
		topic := b.topics.CC(ev.CC.Channel, ev.CC.Controller)
		if err := b.broker.Publish(topic, []byte(strconv.Itoa(int(ev.CC.Value))), false); err != nil {
			b.log.Debug("publish cc failed", "error", err)
		}
	case bus.KindDevicesChanged:
		b.publishDevices()
		b.publishConnection()
	}
}

func (b *Bridge) publishDevices() {
	devices := b.mgr.ListDevices()
	if devices == nil {
		devices = []midi.Device{}
	}
	b.publishJSON(b.topics.Devices(), devices)
}

type endpointPayload struct {
	ID   midi.EndpointID `json:"id"`
	Name string          `json:"name"`
}

type connectionPayload struct {
	State       string           `json:"state"`
	Destination *endpointPayload `json:"destination,omitempty"`
	Source      *endpointPayload `json:"source,omitempty"`
}

func newConnectionPayload(c midi.Connection) connectionPayload {
	p := connectionPayload{State: midi.Disconnected.String()}
	if !c.IsZero() {
		p.State = midi.Connected.String()
	}
	if c.Destination != nil {
		p.Destination = &endpointPayload{ID: c.Destination.ID, Name: c.Destination.Name}
	}
	if c.Source != nil {
		p.Source = &endpointPayload{ID: c.Source.ID, Name: c.Source.Name}
	}
	return p
}

func (b *Bridge) publishConnection() {
	b.publishJSON(b.topics.Connection(), newConnectionPayload(b.mgr.Connection()))
}

func (b *Bridge) publishJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("marshal failed", "topic", topic, "error", err)
		return
	}
	if err := b.broker.Publish(topic, data, true); err != nil {
		b.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// handleSet takes a numeric payload: <prefix>/set/<controller>/<cc>
func (b *Bridge) handleSet(topic string, payload []byte) error {
	id, cc, ok := b.topics.parseSet(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrBadPayload, topic)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}
	b.mgr.Send(id, cc, v)
	return nil
}

// handleChannel takes 1-16: <prefix>/channel/<controller>
func (b *Bridge) handleChannel(topic string, payload []byte) error {
	id, ok := b.topics.parseChannel(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrBadPayload, topic)
	}
	ch, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil || ch < 1 || ch > 16 {
		return fmt.Errorf("%w: channel %q", ErrBadPayload, payload)
	}
	b.mgr.SetChannel(id, ch)
	return nil
}

// handleConnect takes a device id; an empty payload disconnects
func (b *Bridge) handleConnect(_ string, payload []byte) error {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		b.mgr.Disconnect()
		b.publishConnection()
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: device id %q", ErrBadPayload, s)
	}
	ok := b.mgr.Connect(midi.EndpointID(id))
	b.publishConnection()
	if !ok {
		return fmt.Errorf("connect %d failed", id)
	}
	return nil
}
