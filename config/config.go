package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ccremote/controller"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// MIDIConfig selects and tunes the transport
type MIDIConfig struct {
	Backend      string        `yaml:"backend"` // auto, live, stub
	ClientName   string        `yaml:"client_name"`
	PollInterval time.Duration `yaml:"poll_interval"`
	AutoConnect  string        `yaml:"auto_connect,omitempty"` // device name
	EventBuffer  int           `yaml:"event_buffer"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file,omitempty"`
}

// MQTTConfig enables the remote UI bridge
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// InfluxDBConfig enables CC history recording
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token,omitempty"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file
}

// Config is the main configuration structure
type Config struct {
	MIDI        MIDIConfig              `yaml:"midi"`
	Logging     LoggingConfig           `yaml:"logging"`
	Controllers []controller.Definition `yaml:"controllers,omitempty"`
	MQTT        MQTTConfig              `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig          `yaml:"influxdb"`
	UI          UIConfig                `yaml:"ui"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MIDI: MIDIConfig{
			Backend:      "auto",
			ClientName:   "ccremote",
			PollInterval: time.Second,
			EventBuffer:  256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Controllers: []controller.Definition{controller.P6Granular()},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "ccremote",
			QoS:         0,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "ccremote",
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ccremote"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the default config file, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, applies environment overrides
// and validates. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Listed controllers replace the built-in ones
		cfg.Controllers = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if cfg.Controllers == nil {
			cfg.Controllers = DefaultConfig().Controllers
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CCREMOTE_BACKEND"); v != "" {
		c.MIDI.Backend = v
	}
	if v := os.Getenv("CCREMOTE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CCREMOTE_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
}

// Validate checks ranges the rest of the program relies on
func (c *Config) Validate() error {
	switch c.MIDI.Backend {
	case "auto", "live", "stub":
	default:
		return fmt.Errorf("%w: midi.backend %q", ErrInvalid, c.MIDI.Backend)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos %d", ErrInvalid, c.MQTT.QoS)
	}

	ids := make(map[string]bool)
	for _, d := range c.Controllers {
		if d.ID == "" {
			return fmt.Errorf("%w: controller without id", ErrInvalid)
		}
		if ids[d.ID] {
			return fmt.Errorf("%w: duplicate controller %q", ErrInvalid, d.ID)
		}
		ids[d.ID] = true
		if d.DefaultChannel < 1 || d.DefaultChannel > 16 {
			return fmt.Errorf("%w: controller %q channel %d", ErrInvalid, d.ID, d.DefaultChannel)
		}
		for _, p := range d.Params() {
			if p.CC < 0 || p.CC > 127 {
				return fmt.Errorf("%w: controller %q param %q cc %d", ErrInvalid, d.ID, p.Label, p.CC)
			}
		}
	}
	return nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating the directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller definition by id
func (c *Config) FindController(id string) *controller.Definition {
	for i := range c.Controllers {
		if c.Controllers[i].ID == id {
			return &c.Controllers[i]
		}
	}
	return nil
}
