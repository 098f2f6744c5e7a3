// Package config provides YAML configuration for the monitor.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the monitor configuration.
type Config struct {
	// Platform overrides the detected operating system identity
	// ("linux", "windows", "darwin"). Empty means autodetect.
	Platform string `yaml:"platform"`

	// Verbose enables per-metric latency and error narration.
	Verbose bool `yaml:"verbose"`

	// PollInterval overrides the backend's fixed cadence when set
	// (duration string, e.g. "2s"). Empty keeps the backend default.
	PollInterval string `yaml:"poll_interval"`

	// DiskIndex preselects a storage device when several expose
	// temperature sensors. Negative means "prompt interactively".
	DiskIndex int `yaml:"disk_index"`

	// Remote samples a remote darwin machine over SSH instead of the
	// local one. Empty host means local sampling.
	Remote RemoteConfig `yaml:"remote"`

	// Device configures the Divoom display target.
	Device DeviceConfig `yaml:"device"`

	// Console configures the local terminal output.
	Console ConsoleConfig `yaml:"console"`
}

// RemoteConfig holds SSH connection settings for remote sampling.
type RemoteConfig struct {
	// Host is the remote machine's hostname or IP. Empty disables
	// remote sampling.
	Host string `yaml:"host"`
	// Port is the SSH port. Defaults to 22.
	Port int `yaml:"port"`
	// User is the SSH username.
	User string `yaml:"user"`
	// KeyPath is the path to a private key file.
	KeyPath string `yaml:"key_path"`
	// Password authenticates when no key is configured.
	Password string `yaml:"password"`
}

// DeviceConfig holds Divoom device settings.
type DeviceConfig struct {
	// Enabled controls whether readings are pushed to a device at all.
	Enabled bool `yaml:"enabled"`
	// Address is the device IP. Empty triggers LAN discovery.
	Address string `yaml:"address"`
	// LcdID selects the LCD panel on multi-dial devices.
	LcdID int `yaml:"lcd_id"`
	// ClockID, when positive, switches the device to that clock face
	// at startup (the PC monitor dial).
	ClockID int `yaml:"clock_id"`
}

// ConsoleConfig holds terminal output settings.
type ConsoleConfig struct {
	// Enabled controls the per-reading status line on stdout.
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DiskIndex: -1,
		Device: DeviceConfig{
			Enabled: true,
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
	}
}

// Load reads and validates a YAML config file. Fields absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and duration syntax.
func (c *Config) Validate() error {
	if c.PollInterval != "" {
		d, err := time.ParseDuration(c.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval %q: %w", c.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %q", c.PollInterval)
		}
	}

	switch c.Platform {
	case "", "linux", "windows", "darwin":
	default:
		return fmt.Errorf("unknown platform %q (want linux, windows or darwin)", c.Platform)
	}

	if c.Remote.Host != "" {
		if c.Remote.User == "" {
			return fmt.Errorf("remote.user is required when remote.host is set")
		}
		if c.Remote.Port < 0 || c.Remote.Port > 65535 {
			return fmt.Errorf("remote.port %d out of range", c.Remote.Port)
		}
		if c.Platform != "" && c.Platform != "darwin" {
			return fmt.Errorf("remote sampling requires the darwin backend, got platform %q", c.Platform)
		}
	}

	if c.Device.LcdID < 0 {
		return fmt.Errorf("device.lcd_id must not be negative")
	}

	return nil
}

// PollIntervalDuration returns the parsed poll interval override, or
// zero when the backend default applies. Call Validate first.
func (c *Config) PollIntervalDuration() time.Duration {
	if c.PollInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0
	}
	return d
}
