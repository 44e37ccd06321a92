package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccremote/controller"
	"ccremote/midi"
	"ccremote/remote"
	"ccremote/theme"
)

func newTestModel(t *testing.T) (*Model, *midi.Stub) {
	t.Helper()
	stub := midi.NewStub(midi.StubOptions{})
	mgr := remote.New(stub, remote.Options{
		Definitions: []controller.Definition{controller.P6Granular()},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(func() { mgr.Close() })

	m, err := NewModel(mgr, theme.New(nil), "")
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, stub
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "shift+right":
		return tea.KeyMsg{Type: tea.KeyShiftRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(key(k))
	}
	return cmd
}

func value(t *testing.T, m *Model, cc int) int {
	t.Helper()
	st, ok := m.Manager.Controller("p6-granular")
	require.True(t, ok)
	return st.Value(cc)
}

func TestNewModel_UnknownDefinition(t *testing.T) {
	m, _ := newTestModel(t)
	_, err := NewModel(m.Manager, theme.New(nil), "nope")
	assert.Error(t, err)
}

func TestModel_AdjustFader(t *testing.T) {
	m, _ := newTestModel(t)

	// first param of the first section is Coarse Tune, cc 76
	press(m, "right", "right", "shift+right")
	assert.Equal(t, 10, value(t, m, 76))

	press(m, "left")
	assert.Equal(t, 9, value(t, m, 76))

	press(m, "down", "right")
	assert.Equal(t, 1, value(t, m, 18))
}

func TestModel_AdjustClampsAtZero(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "left")
	assert.Equal(t, 0, value(t, m, 76))
}

func TestModel_Toggle(t *testing.T) {
	m, _ := newTestModel(t)

	// Start Mode, cc 79, is the 13th parameter
	for range 12 {
		press(m, "down")
	}
	press(m, "right")
	assert.Equal(t, 127, value(t, m, 79))
	press(m, "left")
	assert.Equal(t, 0, value(t, m, 79))
}

func TestModel_SectionsWrap(t *testing.T) {
	m, _ := newTestModel(t)
	for range len(m.def.Sections) {
		press(m, "tab")
	}
	assert.Equal(t, 0, m.section)
}

func TestModel_Channel(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "]")
	st, _ := m.Manager.Controller("p6-granular")
	assert.Equal(t, 6, st.Channel)

	for range 20 {
		press(m, "[")
	}
	st, _ = m.Manager.Controller("p6-granular")
	assert.Equal(t, 1, st.Channel)
}

func TestModel_ConnectCyclesDevices(t *testing.T) {
	m, stub := newTestModel(t)

	press(m, "d")
	assert.Equal(t, "no MIDI devices", m.status)

	a := stub.AddDestination("A")
	b := stub.AddDestination("B")

	press(m, "d")
	assert.Equal(t, a, m.Manager.Connection().Destination.ID)
	press(m, "d")
	assert.Equal(t, b, m.Manager.Connection().Destination.ID)

	press(m, "right")
	sent := stub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, b, sent[0].Dst)
	assert.Equal(t, []byte{0xB4, 76, 1}, sent[0].Data)

	press(m, "x")
	assert.True(t, m.Manager.Connection().IsZero())
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_View(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	assert.Contains(t, out, "P-6 Granular Engine")
	assert.Contains(t, out, "ch:05")
	assert.Contains(t, out, "no device")
	assert.Contains(t, out, "Coarse Tune")

	press(m, "?")
	assert.Contains(t, m.View(), "connect next device")
}

func TestModel_AdjustStartsFromDefault(t *testing.T) {
	m, _ := newTestModel(t)

	// Pan, cc 10, defaults to center in the last section
	press(m, "tab", "tab", "tab")
	for range 10 {
		press(m, "down")
	}
	press(m, "right")
	assert.Equal(t, 65, value(t, m, 10))
}
