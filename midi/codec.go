package midi

import (
	"iter"
	"math"
)

// UMP message types we care about
const (
	umpTypeMIDI1ChannelVoice = 0x2
)

// ClampValue rounds v and clamps it to the 7-bit range
func ClampValue(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 127 {
		return 127
	}
	return uint8(r)
}

// Encode returns the 3-byte wire form of a Control Change.
// Channel is 1-based; out of range channels wrap into the low nibble.
func Encode(channel, cc int, value float64) [3]byte {
	return [3]byte{
		CC | byte((channel-1)&0x0F),
		byte(cc & 0x7F),
		ClampValue(value),
	}
}

// Pack converts encoded CC bytes into a MIDI 1.0 channel voice protocol word on group 0
func Pack(b [3]byte) uint32 {
	w, _ := Word(0, b[:])
	return w
}

// Word packs a MIDI 1.0 channel voice byte message into a type 0x2 protocol word.
// Returns false for anything that is not a 2 or 3 byte channel voice message.
func Word(group uint8, msg []byte) (uint32, bool) {
	if len(msg) < 2 {
		return 0, false
	}
	status := msg[0]
	if status < 0x80 || status >= 0xF0 {
		return 0, false
	}
	var d1, d2 byte
	d1 = msg[1] & 0x7F
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		// single data byte
	default:
		if len(msg) < 3 {
			return 0, false
		}
		d2 = msg[2] & 0x7F
	}
	return uint32(umpTypeMIDI1ChannelVoice)<<28 |
		uint32(group&0x0F)<<24 |
		uint32(status)<<16 |
		uint32(d1)<<8 |
		uint32(d2), true
}

// Decode yields every Control Change in the list, in arrival order.
// Other message types and statuses are skipped.
func Decode(list EventList) iter.Seq[ControlChange] {
	return func(yield func(ControlChange) bool) {
		for _, p := range list.Packets {
			n := p.WordCount
			if n > len(p.Words) {
				n = len(p.Words)
			}
			for _, w := range p.Words[:max(n, 0)] {
				msg, ok := decodeWord(w)
				if !ok {
					continue
				}
				if !yield(msg) {
					return
				}
			}
		}
	}
}

func decodeWord(w uint32) (ControlChange, bool) {
	if (w>>28)&0x0F != umpTypeMIDI1ChannelVoice {
		return ControlChange{}, false
	}
	status := uint8(w >> 16)
	if status&0xF0 != CC {
		return ControlChange{}, false
	}
	return ControlChange{
		Channel:    status&0x0F + 1,
		Controller: uint8(w>>8) & 0x7F,
		Value:      uint8(w) & 0x7F,
	}, true
}
