// Package console provides the interactive command-line interface.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"

	"ccremote/bus"
	"ccremote/midi"
	"ccremote/remote"
)

type lineReader interface {
	Readline() (string, error)
	Close() error
}

// Console handles interactive mode
type Console struct {
	mgr   *remote.Manager
	rl    lineReader
	out   io.Writer
	watch atomic.Bool
	unsub func()
}

// New creates a console reading from the terminal
func New(mgr *remote.Manager) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(mgr, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(mgr *remote.Manager, out io.Writer) *Console {
	c := &Console{mgr: mgr, out: out}
	c.unsub = mgr.Subscribe(c.handleEvent)
	return c
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop. Cancelling ctx closes the
// reader, which unblocks a pending Readline.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.close()
	stop := context.AfterFunc(ctx, func() { c.rl.Close() })
	defer stop()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Exec(line) {
			cancel()
			return
		}
	}
}

func (c *Console) close() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	if c.rl != nil {
		c.rl.Close()
	}
}

// Exec runs one command line. It returns false when the console should exit.
func (c *Console) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "devices", "ls":
		c.cmdDevices()

	case "connect", "c":
		c.cmdConnect(args)

	case "disconnect":
		c.mgr.Disconnect()
		fmt.Fprintln(c.out, "Disconnected")

	case "status":
		c.cmdStatus()

	case "send", "s":
		c.cmdSend(args)

	case "channel", "ch":
		c.cmdChannel(args)

	case "show":
		c.cmdShow(args)

	case "watch":
		c.cmdWatch(args)

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  Devices:
    devices                      - List MIDI devices
    connect <id>                 - Connect to a device
    disconnect                   - Drop the current connection
    status                       - Show connection and controllers

  Controllers:
    send <controller> <cc> <val> - Send a CC value (0-127)
    channel <controller> <ch>    - Set a controller's MIDI channel (1-16)
    show <controller>            - Show cached CC values
    watch on|off                 - Print incoming CC messages

  General:
    help                         - Show this help
    quit                         - Exit`)
}

func (c *Console) cmdDevices() {
	devices := c.mgr.ListDevices()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No MIDI devices")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(c.out, "  %-10d %-32s %s\n", d.ID, d.Name, direction(d))
	}
}

func direction(d midi.Device) string {
	switch {
	case d.IsSource && d.IsDestination:
		return "in/out"
	case d.IsSource:
		return "in"
	case d.IsDestination:
		return "out"
	}
	return "-"
}

func (c *Console) cmdConnect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: connect <id>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid device id: %s\n", args[0])
		return
	}
	if !c.mgr.Connect(midi.EndpointID(id)) {
		fmt.Fprintf(c.out, "Could not connect to %d\n", id)
		return
	}
	c.cmdStatus()
}

func (c *Console) cmdStatus() {
	conn := c.mgr.Connection()
	switch {
	case conn.IsZero():
		fmt.Fprintln(c.out, "Connection: none")
	default:
		if conn.Destination != nil {
			fmt.Fprintf(c.out, "Output: %s (%d)\n", conn.Destination.Name, conn.Destination.ID)
		}
		if conn.Source != nil {
			fmt.Fprintf(c.out, "Input:  %s (%d)\n", conn.Source.Name, conn.Source.ID)
		}
	}
	for _, id := range c.mgr.ControllerIDs() {
		st, _ := c.mgr.Controller(id)
		fmt.Fprintf(c.out, "Controller %s: channel %d\n", id, st.Channel)
	}
	if n := c.mgr.Dropped(); n > 0 {
		fmt.Fprintf(c.out, "Dropped events: %d\n", n)
	}
}

func (c *Console) cmdSend(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(c.out, "Usage: send <controller> <cc> <value>")
		return
	}
	if _, ok := c.mgr.Controller(args[0]); !ok {
		fmt.Fprintf(c.out, "Unknown controller: %s\n", args[0])
		return
	}
	cc, err := strconv.Atoi(args[1])
	if err != nil || cc < 0 || cc > 127 {
		fmt.Fprintf(c.out, "Invalid cc: %s\n", args[1])
		return
	}
	v, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid value: %s\n", args[2])
		return
	}
	c.mgr.Send(args[0], cc, v)
	fmt.Fprintf(c.out, "%s cc%d = %d\n", args[0], cc, midi.ClampValue(v))
}

func (c *Console) cmdChannel(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: channel <controller> <ch>")
		return
	}
	if _, ok := c.mgr.Controller(args[0]); !ok {
		fmt.Fprintf(c.out, "Unknown controller: %s\n", args[0])
		return
	}
	ch, err := strconv.Atoi(args[1])
	if err != nil || ch < 1 || ch > 16 {
		fmt.Fprintf(c.out, "Invalid channel: %s (1-16)\n", args[1])
		return
	}
	c.mgr.SetChannel(args[0], ch)
	fmt.Fprintf(c.out, "%s channel = %d\n", args[0], ch)
}

func (c *Console) cmdShow(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: show <controller>")
		return
	}
	st, ok := c.mgr.Controller(args[0])
	if !ok {
		fmt.Fprintf(c.out, "Unknown controller: %s\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "%s (channel %d)\n", args[0], st.Channel)

	def, ok := c.mgr.Definition(args[0])
	if !ok {
		for cc := 0; cc < 128; cc++ {
			if v, set := st.Values[cc]; set {
				fmt.Fprintf(c.out, "  cc%-3d %3d\n", cc, v)
			}
		}
		return
	}
	for _, sec := range def.Sections {
		fmt.Fprintf(c.out, "  %s\n", sec.Title)
		for _, p := range sec.Params {
			fmt.Fprintf(c.out, "    %-24s cc%-3d %3d\n", p.Label, p.CC, p.Current(st))
		}
	}
}

func (c *Console) cmdWatch(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(c.out, "Usage: watch on|off")
		return
	}
	c.watch.Store(args[0] == "on")
	fmt.Fprintf(c.out, "Watch %s\n", args[0])
}

// handleEvent runs on the bus goroutine
func (c *Console) handleEvent(ev bus.Event) {
	if !c.watch.Load() {
		return
	}
	switch ev.Kind {
	case bus.KindControlChange:
		fmt.Fprintf(c.out, "<< %s\n", ev.CC)
	case bus.KindDevicesChanged:
		fmt.Fprintln(c.out, "<< devices changed")
	}
}
