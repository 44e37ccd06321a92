package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"ccremote/bridge"
	"ccremote/config"
	"ccremote/console"
	"ccremote/logging"
	"ccremote/midi"
	"ccremote/recorder"
	"ccremote/remote"
	"ccremote/theme"
	"ccremote/tui"
)

var (
	configPath   = flag.String("config", "", "config file (default ~/.config/ccremote/config.yaml)")
	backendFlag  = flag.String("backend", "", "MIDI backend: auto, live, stub")
	consoleMode  = flag.Bool("console", false, "run the interactive console instead of the TUI")
	logLevel     = flag.String("log-level", "", "debug, info, warn, error")
	controllerID = flag.String("controller", "", "controller shown in the TUI (default: first)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if *backendFlag != "" {
		cfg.MIDI.Backend = *backendFlag
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	// The TUI owns the terminal
	if !*consoleMode && cfg.Logging.File == "" {
		if path, err := logging.DefaultFile(); err == nil {
			cfg.Logging.File = path
		}
	}
	return cfg, cfg.Validate()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		return fmt.Errorf("load palette: %w", err)
	}

	transport, err := midi.Open(cfg.MIDI.Backend, midi.Options{
		ClientName:   cfg.MIDI.ClientName,
		PollInterval: cfg.MIDI.PollInterval,
		Logger:       logger.Logger,
	})
	if err != nil {
		return err
	}

	mgr := remote.New(transport, remote.Options{
		Definitions: cfg.Controllers,
		AutoConnect: cfg.MIDI.AutoConnect,
		EventBuffer: cfg.MIDI.EventBuffer,
		Logger:      logger.Logger,
	})
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	if cfg.MQTT.Enabled {
		if client := startBridge(ctx, cfg.MQTT, mgr, logger); client != nil {
			defer client.Close()
		}
	}

	if cfg.InfluxDB.Enabled {
		rec, err := recorder.Connect(cfg.InfluxDB, logger.Logger)
		if err != nil {
			logger.Warn("recorder disabled", "error", err)
		} else {
			unsub := mgr.Subscribe(rec.Handle)
			defer rec.Close()
			defer unsub()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if *consoleMode {
		c, err := console.New(mgr)
		if err != nil {
			return err
		}
		// Redirect log output through readline to avoid interfering with input
		logger.Redirect(c.Stdout())
		c.Run(ctx, cancel)
		return nil
	}

	m, err := tui.NewModel(mgr, theme.New(palette), *controllerID)
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// startBridge returns nil when the broker is unreachable; the remote keeps
// working without it.
func startBridge(ctx context.Context, cfg config.MQTTConfig, mgr *remote.Manager, logger *logging.Logger) *bridge.Client {
	client, err := bridge.Connect(cfg, logger.With("component", "mqtt"))
	if err != nil {
		logger.Warn("mqtt bridge disabled", "error", err)
		return nil
	}

	b := bridge.New(client, mgr, cfg.TopicPrefix, logger.Logger)
	go func() {
		if err := b.Run(ctx); err != nil {
			logger.Error("mqtt bridge stopped", "error", err)
		}
	}()
	logger.Info("mqtt bridge started", "broker", cfg.Broker, "prefix", cfg.TopicPrefix)
	return client
}
