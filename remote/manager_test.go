package remote

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccremote/bus"
	"ccremote/controller"
	"ccremote/midi"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func newTestManager(t *testing.T, stub *midi.Stub, opts Options) *Manager {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Definitions == nil {
		opts.Definitions = []controller.Definition{controller.P6Granular()}
	}
	m := New(stub, opts)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_Lifecycle(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	m := New(stub, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Equal(t, StateInit, m.State())

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateReady, m.State())
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, StateTornDown, m.State())
	assert.True(t, stub.Closed())
	assert.ErrorIs(t, m.Start(context.Background()), ErrClosed)

	// no-ops once torn down
	assert.Nil(t, m.ListDevices())
	assert.False(t, m.Connect(1))
	m.Send("p6-granular", 1, 10)
	assert.Empty(t, stub.Sent())
}

func TestManager_CloseWithoutStart(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	m := New(stub, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, m.Close())
	assert.True(t, stub.Closed())
}

func TestManager_RegistersDefinitions(t *testing.T) {
	m := newTestManager(t, midi.NewStub(midi.StubOptions{}), Options{})

	st, ok := m.Controller("p6-granular")
	require.True(t, ok)
	assert.Equal(t, 5, st.Channel)
	assert.Equal(t, []string{"p6-granular"}, m.ControllerIDs())

	d, ok := m.Definition("p6-granular")
	require.True(t, ok)
	assert.Equal(t, "P-6 Granular Engine", d.Name)
	_, ok = m.Definition("missing")
	assert.False(t, ok)
}

func TestManager_SendAndLoopback(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{Loopback: true})
	m := newTestManager(t, stub, Options{AutoConnect: midi.SimulatorName})

	conn := m.Connection()
	require.NotNil(t, conn.Destination)
	require.NotNil(t, conn.Source)

	var seen atomic.Int32
	m.Subscribe(func(ev bus.Event) {
		if ev.Kind == bus.KindControlChange {
			seen.Add(1)
		}
	})

	m.Send("p6-granular", 74, 100.4)

	sent := stub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0xB4, 74, 100}, sent[0].Data)

	assert.Eventually(t, func() bool { return seen.Load() == 1 }, waitFor, tick)
	st, _ := m.Controller("p6-granular")
	assert.Equal(t, 100, st.Value(74))
}

func TestManager_InboundRoutesToController(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	dst := stub.AddDestination("P-6")
	src := stub.AddSource("P-6")
	m := newTestManager(t, stub, Options{})

	require.True(t, m.Connect(dst))
	require.True(t, stub.Inject(src, midi.NewEventList(0x20B41A40)))

	assert.Eventually(t, func() bool {
		st, _ := m.Controller("p6-granular")
		return st.Value(26) == 64
	}, waitFor, tick)
}

func TestManager_DevicesChangedEvent(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	m := newTestManager(t, stub, Options{})

	var changes atomic.Int32
	m.Subscribe(func(ev bus.Event) {
		if ev.Kind == bus.KindDevicesChanged {
			changes.Add(1)
		}
	})

	stub.AddDestination("New Synth")
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, waitFor, tick)
	assert.Len(t, m.ListDevices(), 1)
}

func TestManager_DisconnectsWhenDeviceVanishes(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	dst := stub.AddDestination("P-6")
	m := newTestManager(t, stub, Options{})

	require.True(t, m.Connect(dst))
	stub.Remove(dst)

	assert.Eventually(t, func() bool { return m.Connection().IsZero() }, waitFor, tick)
}

func TestManager_AutoConnectOnHotplug(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	m := newTestManager(t, stub, Options{AutoConnect: "P-6"})
	assert.True(t, m.Connection().IsZero())

	dst := stub.AddDestination("P-6")

	assert.Eventually(t, func() bool {
		c := m.Connection()
		return c.Destination != nil && c.Destination.ID == dst
	}, waitFor, tick)
}

func TestManager_SetChannel(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	dst := stub.AddDestination("P-6")
	m := newTestManager(t, stub, Options{})
	require.True(t, m.Connect(dst))

	m.SetChannel("p6-granular", 1)
	m.Send("p6-granular", 7, 127)

	sent := stub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0xB0, 7, 127}, sent[0].Data)

	m.RegisterController("extra", 16)
	st, ok := m.Controller("extra")
	require.True(t, ok)
	assert.Equal(t, 16, st.Channel)
}

func TestManager_DisconnectsWhenIDNamesAnotherPort(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	stub.AddDestination("A")
	dst := stub.AddDestination("B")
	m := newTestManager(t, stub, Options{})

	require.True(t, m.Connect(dst))
	stub.Rename(dst, "C")

	assert.Eventually(t, func() bool { return m.Connection().IsZero() }, waitFor, tick)

	m.Send("p6-granular", 7, 100)
	assert.Empty(t, stub.Sent())
}

func TestManager_KeepsConnectionWhenOtherDeviceLeaves(t *testing.T) {
	stub := midi.NewStub(midi.StubOptions{})
	a := stub.AddDestination("A")
	dst := stub.AddDestination("B")
	m := newTestManager(t, stub, Options{})

	var changes atomic.Int32
	m.Subscribe(func(ev bus.Event) {
		if ev.Kind == bus.KindDevicesChanged {
			changes.Add(1)
		}
	})

	require.True(t, m.Connect(dst))
	stub.Remove(a)
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, waitFor, tick)

	c := m.Connection()
	require.NotNil(t, c.Destination)
	assert.Equal(t, "B", c.Destination.Name)
}
