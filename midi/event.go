package midi

import "fmt"

// MIDI status nibbles
const (
	NoteOff uint8 = 0x80
	NoteOn  uint8 = 0x90
	CC      uint8 = 0xB0
)

// ControlChange is a decoded CC message. Channel is 1-based.
type ControlChange struct {
	Channel    uint8 // 1-16
	Controller uint8 // 0-127
	Value      uint8 // 0-127
}

func (c ControlChange) String() string {
	return fmt.Sprintf("ch%d cc%d=%d", c.Channel, c.Controller, c.Value)
}

// EndpointID is an opaque identity assigned by the transport.
// It is not stable across restarts of the platform MIDI service.
type EndpointID uint32

// Endpoint is a single-direction port exposed by the transport
type Endpoint struct {
	ID            EndpointID
	Name          string
	IsSource      bool
	IsDestination bool
}

// Device is one or two endpoints sharing a display name.
// ID is the identity of the endpoint first discovered for that name.
type Device struct {
	ID            EndpointID `json:"id"`
	Name          string     `json:"name"`
	IsSource      bool       `json:"isSource"`
	IsDestination bool       `json:"isDestination"`
}

// Packet is a group of protocol words. WordCount is what the transport
// declared, which may disagree with len(Words) on a malformed packet.
type Packet struct {
	Timestamp uint64
	WordCount int
	Words     []uint32
}

// EventList is the buffer handed to the receive callback
type EventList struct {
	Packets []Packet
}

// NewEventList wraps single-word packets, one per word
func NewEventList(words ...uint32) EventList {
	list := EventList{Packets: make([]Packet, 0, len(words))}
	for _, w := range words {
		list.Packets = append(list.Packets, Packet{WordCount: 1, Words: []uint32{w}})
	}
	return list
}
