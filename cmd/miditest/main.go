package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"ccremote/midi"
)

var backend = flag.String("backend", "auto", "MIDI backend: auto, live, stub")

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		return
	}

	var err error
	switch args[0] {
	case "ports":
		listPorts()
	case "list":
		err = withTransport(func(t midi.Transport) error { return listDevices(t) })
	case "poll":
		err = withTransport(pollDevices)
	case "monitor":
		err = withTransport(func(t midi.Transport) error { return monitor(t, args[1:]) })
	case "send":
		err = withTransport(func(t midi.Transport) error { return send(t, args[1:]) })
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Usage: miditest [-backend auto|live|stub] <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports                        - List raw driver ports")
	fmt.Println("  list                         - List devices (ins and outs merged by name)")
	fmt.Println("  poll                         - Print the device list on every change")
	fmt.Println("  monitor <id>                 - Connect and print incoming CC")
	fmt.Println("  send <id> <ch> <cc> <value>  - Send one CC message")
}

func withTransport(fn func(midi.Transport) error) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	t, err := midi.Open(*backend, midi.Options{ClientName: "miditest", Logger: logger})
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}

// listPorts asks the driver directly, so a hung MIDI service shows up as a
// timeout rather than a frozen program.
func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI service is hung.")
		fmt.Println("Fix (macOS): sudo killall coreaudiod midiserver")
	}
}

func listDevices(t midi.Transport) error {
	devices := midi.NewRegistry(t).Enumerate()
	if len(devices) == 0 {
		fmt.Println("No MIDI devices")
		return nil
	}
	printDevices(devices)
	return nil
}

func printDevices(devices []midi.Device) {
	for _, d := range devices {
		dir := ""
		if d.IsSource {
			dir += "in"
		}
		if d.IsDestination {
			if dir != "" {
				dir += "/"
			}
			dir += "out"
		}
		fmt.Printf("  %-10d %-32s %s\n", d.ID, d.Name, dir)
	}
}

func pollDevices(t midi.Transport) error {
	fmt.Println("Polling for device changes. Ctrl+C to exit.")

	reg := midi.NewRegistry(t)
	changed := make(chan struct{}, 1)
	reg.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	printDevices(reg.Enumerate())
	stop := interrupted()
	for {
		select {
		case <-changed:
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			printDevices(reg.Enumerate())
		case <-stop:
			return nil
		}
	}
}

func monitor(t midi.Transport, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: monitor <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cm := midi.NewConnectionManager(t, func(msg midi.ControlChange) {
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
	}, logger)
	if !cm.Connect(id) {
		return fmt.Errorf("could not connect to %d", id)
	}
	if cm.Current().Source == nil {
		return fmt.Errorf("device %d has no input", id)
	}

	fmt.Printf("Monitoring %s. Ctrl+C to exit.\n", cm.Current().Source.Name)
	<-interrupted()
	cm.Disconnect()
	return nil
}

func send(t midi.Transport, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: send <id> <ch> <cc> <value>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	var nums [3]int
	for i, s := range args[1:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		nums[i] = n
	}
	ch, cc, value := nums[0], nums[1], nums[2]
	if ch < 1 || ch > 16 {
		return fmt.Errorf("channel %d out of range 1-16", ch)
	}
	if cc < 0 || cc > 127 {
		return fmt.Errorf("cc %d out of range 0-127", cc)
	}

	msg := midi.Encode(ch, cc, float64(value))
	if err := t.Send(id, msg[:]); err != nil {
		return err
	}
	fmt.Printf("Sent % X\n", msg)
	return nil
}

func parseID(s string) (midi.EndpointID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q", s)
	}
	return midi.EndpointID(n), nil
}

func interrupted() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
