package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortTable_IDsSurviveRenumbering(t *testing.T) {
	tbl := newPortTable(idDestination)

	ids := tbl.assign([]string{"A", "B", "C"})
	require.Len(t, ids, 3)
	a, b, c := ids[0], ids[1], ids[2]

	// A unplugged: B and C move down one position
	now := []string{"B", "C"}
	assert.Equal(t, []EndpointID{b, c}, tbl.assign(now))
	assert.Equal(t, 0, tbl.find(b, now))
	assert.Equal(t, 1, tbl.find(c, now))
	assert.Equal(t, -1, tbl.find(a, now))

	// replugged A keeps its id
	assert.Equal(t, []EndpointID{c, a, b}, tbl.assign([]string{"C", "A", "B"}))
}

func TestPortTable_DuplicateNames(t *testing.T) {
	tbl := newPortTable(idSource)

	ids := tbl.assign([]string{"USB MIDI", "Keys", "USB MIDI"})
	assert.NotEqual(t, ids[0], ids[2])
	assert.Equal(t, 2, tbl.find(ids[2], []string{"USB MIDI", "Keys", "USB MIDI"}))
	assert.Equal(t, -1, tbl.find(ids[2], []string{"USB MIDI", "Keys"}))
}

func TestPortTable_DirectionTag(t *testing.T) {
	outs := newPortTable(idDestination)
	ins := newPortTable(idSource)

	out := outs.assign([]string{"P-6"})[0]
	in := ins.assign([]string{"P-6"})[0]

	assert.NotEqual(t, out, in)
	assert.Equal(t, idDestination, out&^idNumberMask)
	assert.Equal(t, idSource, in&^idNumberMask)
	assert.Equal(t, out&idNumberMask, in&idNumberMask)

	// ids from the other direction are unknown
	assert.Equal(t, -1, outs.find(in, []string{"P-6"}))
}

func TestPortTable_UnknownID(t *testing.T) {
	tbl := newPortTable(idDestination)
	tbl.assign([]string{"A"})
	assert.Equal(t, -1, tbl.find(idDestination|99, []string{"A"}))
}

func TestPortSignature(t *testing.T) {
	base := portSignature([]string{"P-6"}, []string{"P-6", "Mixer"})

	assert.Equal(t, base, portSignature([]string{"P-6"}, []string{"P-6", "Mixer"}))
	assert.NotEqual(t, base, portSignature([]string{"P-6"}, []string{"Mixer", "P-6"}))
	assert.NotEqual(t, base, portSignature([]string{"P-6"}, []string{"P-6"}))
	// a port moving between directions changes the signature
	assert.NotEqual(t, portSignature([]string{"A"}, nil), portSignature(nil, []string{"A"}))
}

type namedPort string

func (p namedPort) String() string { return string(p) }

func TestPortNames(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, portNames([]namedPort{"A", "B"}))
	assert.Empty(t, portNames([]namedPort(nil)))
}
