package midi

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, [3]byte{0xB4, 0x0C, 0x40}, Encode(5, 12, 64))
	assert.Equal(t, [3]byte{0xB0, 74, 127}, Encode(1, 74, 200))
	assert.Equal(t, [3]byte{0xB0, 74, 0}, Encode(1, 74, -5))
	assert.Equal(t, [3]byte{0xBF, 0x7F, 0x7F}, Encode(16, 127, 127))
}

func TestEncode_RoundsValue(t *testing.T) {
	assert.Equal(t, byte(64), Encode(1, 1, 63.5)[2])
	assert.Equal(t, byte(63), Encode(1, 1, 63.49)[2])
	assert.Equal(t, byte(0), Encode(1, 1, -0.4)[2])
}

func TestEncode_MasksControllerNumber(t *testing.T) {
	assert.Equal(t, byte(0x00), Encode(1, 128, 0)[1])
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for ch := 1; ch <= 16; ch++ {
		for cc := 0; cc <= 127; cc++ {
			for v := 0; v <= 127; v++ {
				got := slices.Collect(Decode(NewEventList(Pack(Encode(ch, cc, float64(v))))))
				require.Len(t, got, 1)
				want := ControlChange{Channel: uint8(ch), Controller: uint8(cc), Value: uint8(v)}
				if got[0] != want {
					t.Fatalf("round trip ch=%d cc=%d v=%d: got %v", ch, cc, v, got[0])
				}
			}
		}
	}
}

func TestDecode_SkipsOtherTypesAndStatuses(t *testing.T) {
	noteOn, ok := Word(0, []byte{0x90, 60, 100})
	require.True(t, ok)
	cc := Pack(Encode(3, 7, 99))

	list := EventList{Packets: []Packet{
		{WordCount: 1, Words: []uint32{0x10F80000}}, // system realtime
		{WordCount: 2, Words: []uint32{noteOn, cc}},
		{WordCount: 1, Words: []uint32{0x40B01234}}, // MIDI 2.0 channel voice
	}}

	got := slices.Collect(Decode(list))
	assert.Equal(t, []ControlChange{{Channel: 3, Controller: 7, Value: 99}}, got)
}

func TestDecode_UsesDeclaredWordCount(t *testing.T) {
	a := Pack(Encode(1, 1, 1))
	b := Pack(Encode(2, 2, 2))

	list := EventList{Packets: []Packet{
		{WordCount: 1, Words: []uint32{a, b}},
		{WordCount: 5, Words: []uint32{b}},
		{WordCount: -1, Words: []uint32{a}},
	}}

	got := slices.Collect(Decode(list))
	assert.Equal(t, []ControlChange{
		{Channel: 1, Controller: 1, Value: 1},
		{Channel: 2, Controller: 2, Value: 2},
	}, got)
}

func TestDecode_MasksDataBytes(t *testing.T) {
	w := uint32(0x2)<<28 | uint32(0xB0)<<16 | uint32(0xFF)<<8 | 0xFF
	got := slices.Collect(Decode(NewEventList(w)))
	require.Len(t, got, 1)
	assert.Equal(t, ControlChange{Channel: 1, Controller: 127, Value: 127}, got[0])
}

func TestDecode_Restartable(t *testing.T) {
	seq := Decode(NewEventList(Pack(Encode(1, 2, 3)), Pack(Encode(4, 5, 6))))
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestDecode_StopsEarly(t *testing.T) {
	seq := Decode(NewEventList(Pack(Encode(1, 1, 1)), Pack(Encode(1, 2, 2)), Pack(Encode(1, 3, 3))))
	var n int
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestWord(t *testing.T) {
	w, ok := Word(0, []byte{0xB4, 0x0C, 0x40})
	require.True(t, ok)
	assert.Equal(t, uint32(0x20B40C40), w)

	w, ok = Word(3, []byte{0xC1, 0x05})
	require.True(t, ok)
	assert.Equal(t, uint32(0x23C10500), w)

	_, ok = Word(0, []byte{0xF0, 0x7E, 0xF7})
	assert.False(t, ok)
	_, ok = Word(0, []byte{0xB0, 0x01})
	assert.False(t, ok)
	_, ok = Word(0, []byte{0x40})
	assert.False(t, ok)
}
