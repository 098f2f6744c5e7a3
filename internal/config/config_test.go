package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DiskIndex != -1 {
		t.Errorf("DiskIndex = %d, want -1 (prompt)", cfg.DiskIndex)
	}
	if !cfg.Device.Enabled {
		t.Error("Device.Enabled should default to true")
	}
	if !cfg.Console.Enabled {
		t.Error("Console.Enabled should default to true")
	}
	if cfg.PollIntervalDuration() != 0 {
		t.Errorf("PollIntervalDuration() = %v, want 0 (backend default)", cfg.PollIntervalDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
platform: darwin
verbose: true
poll_interval: 2s
disk_index: 1
device:
  enabled: true
  address: 192.168.1.50
  lcd_id: 2
  clock_id: 625
console:
  enabled: false
remote:
  host: studio.local
  user: admin
  key_path: /home/user/.ssh/id_ed25519
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Platform != "darwin" || !cfg.Verbose || cfg.DiskIndex != 1 {
		t.Errorf("top-level fields: %+v", cfg)
	}
	if cfg.PollIntervalDuration() != 2*time.Second {
		t.Errorf("PollIntervalDuration() = %v, want 2s", cfg.PollIntervalDuration())
	}
	if cfg.Device.Address != "192.168.1.50" || cfg.Device.LcdID != 2 || cfg.Device.ClockID != 625 {
		t.Errorf("device: %+v", cfg.Device)
	}
	if cfg.Console.Enabled {
		t.Error("console.enabled not parsed")
	}
	if cfg.Remote.Host != "studio.local" || cfg.Remote.User != "admin" {
		t.Errorf("remote: %+v", cfg.Remote)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "verbose: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Verbose {
		t.Error("verbose not parsed")
	}
	if cfg.DiskIndex != -1 || !cfg.Device.Enabled || !cfg.Console.Enabled {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "platform: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default ok", func(*Config) {}, false},
		{"bad poll interval", func(c *Config) { c.PollInterval = "soon" }, true},
		{"negative poll interval", func(c *Config) { c.PollInterval = "-1s" }, true},
		{"unknown platform", func(c *Config) { c.Platform = "freebsd" }, true},
		{"remote without user", func(c *Config) { c.Remote.Host = "studio.local" }, true},
		{"remote port out of range", func(c *Config) {
			c.Remote.Host = "studio.local"
			c.Remote.User = "admin"
			c.Remote.Port = 70000
		}, true},
		{"remote with non-darwin platform", func(c *Config) {
			c.Remote.Host = "studio.local"
			c.Remote.User = "admin"
			c.Platform = "linux"
		}, true},
		{"remote darwin ok", func(c *Config) {
			c.Remote.Host = "studio.local"
			c.Remote.User = "admin"
			c.Platform = "darwin"
		}, false},
		{"negative lcd id", func(c *Config) { c.Device.LcdID = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, "verbose: false\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond,
		func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		},
		func(err error) { t.Logf("watch error: %v", err) },
	)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("verbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if !cfg.Verbose {
			t.Error("reloaded config did not pick up the change")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload callback before deadline")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("verbose: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond,
		func(cfg *Config) { reloaded <- cfg },
		func(err error) { t.Logf("watch error: %v", err) },
	)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("reload triggered by an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStopWithoutStartClosesHandle(t *testing.T) {
	path := writeConfig(t, "verbose: false\n")
	w, err := NewWatcher(path, DefaultWatchDebounce,
		func(*Config) {}, func(error) {})
	if err != nil {
		t.Fatal(err)
	}

	w.Stop()

	// Closing the fsnotify watcher closes its Events channel; a
	// leaked handle would leave it open.
	select {
	case _, ok := <-w.watcher.Events:
		if ok {
			t.Error("Events delivered after Stop, handle not closed")
		}
	case <-time.After(2 * time.Second):
		t.Error("Events channel still open after Stop on a never-started watcher")
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	path := writeConfig(t, "verbose: false\n")
	w, err := NewWatcher(path, DefaultWatchDebounce,
		func(*Config) {}, func(error) {})
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}
