package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ccremote/bus"
	"ccremote/controller"
	"ccremote/midi"
	"ccremote/remote"
	"ccremote/theme"
	"ccremote/widgets"
)

const (
	labelWidth  = 22
	minBarWidth = 8
	coarseStep  = 8
)

type Model struct {
	Manager *remote.Manager
	Theme   *theme.Theme

	def      controller.Definition
	events   chan bus.Event
	unsub    func()
	devices  []midi.Device
	devIdx   int
	section  int
	param    int
	width    int
	showHelp bool
	status   string
	quitting bool
}

// EventMsg carries one bus event into the update loop
type EventMsg bus.Event

// NewModel shows the definition with id, or the manager's first one
func NewModel(manager *remote.Manager, th *theme.Theme, id string) (*Model, error) {
	def, ok := manager.Definition(id)
	if !ok {
		defs := manager.Definitions()
		if id != "" || len(defs) == 0 {
			return nil, fmt.Errorf("no controller definition %q", id)
		}
		def = defs[0]
	}

	// The bus must never block on the UI; stale events are dropped here and
	// the next view reads fresh state from the manager anyway.
	events := make(chan bus.Event, 64)
	unsub := manager.Subscribe(func(ev bus.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	return &Model{
		Manager: manager,
		Theme:   th,
		def:     def,
		events:  events,
		unsub:   unsub,
		devices: manager.ListDevices(),
		devIdx:  -1,
		width:   80,
	}, nil
}

func ListenForEvents(events <-chan bus.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}

func (m *Model) Init() tea.Cmd {
	return ListenForEvents(m.events)
}

// Close stops receiving bus events
func (m *Model) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case EventMsg:
		if bus.Event(msg).Kind == bus.KindDevicesChanged {
			m.devices = m.Manager.ListDevices()
		}
		return m, ListenForEvents(m.events)
	}

	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Close()
		return tea.Quit

	case "d":
		m.nextDevice()

	case "x":
		m.Manager.Disconnect()
		m.status = "disconnected"

	case "up", "k":
		if m.param > 0 {
			m.param--
		}

	case "down", "j":
		if m.param < len(m.params())-1 {
			m.param++
		}

	case "tab":
		if len(m.def.Sections) > 0 {
			m.section = (m.section + 1) % len(m.def.Sections)
			m.param = 0
		}

	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "shift+left", "H":
		m.adjust(-coarseStep)
	case "shift+right", "L":
		m.adjust(coarseStep)

	case "[":
		m.shiftChannel(-1)
	case "]":
		m.shiftChannel(1)

	case "?":
		m.showHelp = !m.showHelp
	}
	return nil
}

// nextDevice cycles through the device list and connects
func (m *Model) nextDevice() {
	m.devices = m.Manager.ListDevices()
	if len(m.devices) == 0 {
		m.status = "no MIDI devices"
		return
	}
	m.devIdx = (m.devIdx + 1) % len(m.devices)
	d := m.devices[m.devIdx]
	if m.Manager.Connect(d.ID) {
		m.status = "connected to " + d.Name
	} else {
		m.status = "could not connect to " + d.Name
	}
}

func (m *Model) params() []controller.Param {
	if m.section >= len(m.def.Sections) {
		return nil
	}
	return m.def.Sections[m.section].Params
}

// adjust moves the selected parameter by delta. Faders move in CC steps,
// the other types move between options.
func (m *Model) adjust(delta int) {
	params := m.params()
	if m.param >= len(params) {
		return
	}
	p := params[m.param]
	st, ok := m.Manager.Controller(m.def.ID)
	if !ok {
		return
	}
	cur := p.Current(st)

	var next int
	switch p.Type {
	case controller.Toggle, controller.Selector:
		step := 1
		if delta < 0 {
			step = -1
		}
		next = p.OptionValue(p.OptionIndex(cur) + step)
	default:
		next = max(0, min(127, cur+delta))
	}
	if next != cur {
		m.Manager.Send(m.def.ID, p.CC, float64(next))
	}
}

func (m *Model) shiftChannel(delta int) {
	st, ok := m.Manager.Controller(m.def.ID)
	if !ok {
		return
	}
	ch := max(1, min(16, st.Channel+delta))
	m.Manager.SetChannel(m.def.ID, ch)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(th.FG())

	st, _ := m.Manager.Controller(m.def.ID)
	header := headerStyle.Render(fmt.Sprintf("ccremote  %s  ch:%02d  %s", m.def.Name, st.Channel, m.connectionLabel()))

	titles := make([]string, len(m.def.Sections))
	for i, s := range m.def.Sections {
		titles[i] = s.Title
	}
	tabs := widgets.RenderTabs(th, titles, m.section)

	barWidth := max(minBarWidth, m.width-labelWidth-16)
	var rows []string
	for i, p := range m.params() {
		rows = append(rows, widgets.RenderParam(th, p, p.Current(st), i == m.param, labelWidth, barWidth))
	}

	help := dimStyle.Render("d:device x:disconnect  ↑↓:select  ←→:adjust  [ ]:channel  tab:section  ?:help  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(tabs)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n\n")
	if m.status != "" {
		out.WriteString(statusStyle.Render(m.status))
		out.WriteString("\n")
	}
	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))
		out.WriteString("\n")
	}
	out.WriteString(help)

	return out.String()
}

func (m *Model) connectionLabel() string {
	conn := m.Manager.Connection()
	sym := m.Theme.Symbols
	switch {
	case conn.Destination != nil:
		return fmt.Sprintf("%c %s", sym.Connected, conn.Destination.Name)
	case conn.Source != nil:
		return fmt.Sprintf("%c %s (in)", sym.Connected, conn.Source.Name)
	}
	return fmt.Sprintf("%c no device", sym.Disconnected)
}

var keyHelp = []widgets.KeySection{
	{Title: "Device", Keys: []widgets.KeyBinding{
		{Key: "d", Desc: "connect next device"},
		{Key: "x", Desc: "disconnect"},
	}},
	{Title: "Parameters", Keys: []widgets.KeyBinding{
		{Key: "↑ ↓", Desc: "select parameter"},
		{Key: "← →", Desc: "adjust by 1 / next option"},
		{Key: "shift+← →", Desc: "adjust by 8"},
		{Key: "tab", Desc: "next section"},
	}},
	{Title: "Channel", Keys: []widgets.KeyBinding{
		{Key: "[ ]", Desc: "channel down / up"},
	}},
}
