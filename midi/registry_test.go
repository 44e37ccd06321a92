package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MergesSameName(t *testing.T) {
	s := NewStub(StubOptions{})
	dst := s.AddDestination("SynthX")
	s.AddSource("SynthX")

	devices := NewRegistry(s).Enumerate()

	require.Len(t, devices, 1)
	assert.Equal(t, Device{ID: dst, Name: "SynthX", IsSource: true, IsDestination: true}, devices[0])
}

func TestRegistry_Ordering(t *testing.T) {
	s := NewStub(StubOptions{})
	keys := s.AddSource("Keys")
	p6out := s.AddDestination("P-6")
	mixer := s.AddDestination("Mixer")
	s.AddSource("P-6")

	devices := NewRegistry(s).Enumerate()

	require.Len(t, devices, 3)
	assert.Equal(t, p6out, devices[0].ID)
	assert.True(t, devices[0].IsSource)
	assert.Equal(t, mixer, devices[1].ID)
	assert.False(t, devices[1].IsSource)
	assert.Equal(t, Device{ID: keys, Name: "Keys", IsSource: true}, devices[2])
}

func TestRegistry_NameMatchIsCaseSensitive(t *testing.T) {
	s := NewStub(StubOptions{})
	s.AddDestination("synthx")
	s.AddSource("SynthX")

	devices := NewRegistry(s).Enumerate()

	require.Len(t, devices, 2)
	assert.False(t, devices[0].IsSource)
	assert.False(t, devices[1].IsDestination)
}

func TestRegistry_SourcesSharingNameMergeOnce(t *testing.T) {
	s := NewStub(StubOptions{})
	s.AddSource("Port")
	s.AddSource("Port")

	devices := NewRegistry(s).Enumerate()

	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsSource)
}

func TestRegistry_SnapshotsAreIndependent(t *testing.T) {
	s := NewStub(StubOptions{})
	s.AddDestination("A")
	r := NewRegistry(s)

	first := r.Enumerate()
	s.AddDestination("B")
	second := r.Enumerate()

	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestRegistry_OnChange(t *testing.T) {
	s := NewStub(StubOptions{})
	r := NewRegistry(s)

	var a, b int
	r.OnChange(func() { a++ })
	r.OnChange(func() { b++ })

	id := s.AddDestination("A")
	s.Remove(id)

	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}

func TestStub_LoopbackSeedsSimulator(t *testing.T) {
	devices := NewRegistry(NewStub(StubOptions{Loopback: true})).Enumerate()

	require.Len(t, devices, 1)
	assert.Equal(t, SimulatorName, devices[0].Name)
	assert.True(t, devices[0].IsSource)
	assert.True(t, devices[0].IsDestination)
}
