// Package main provides the entry point for torto-monitor, a hardware
// telemetry poller that pushes CPU/GPU/memory/disk readings to a Divoom
// LCD device on the local network.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/config"
	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/console"
	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/divoom"
	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/execx"
	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/monitor"
	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/platform"
)

// Version is the current version of torto-monitor.
// This default value can be overridden at build time using:
//
//	go build -ldflags "-X main.Version=x.y.z"
var Version = "1.0.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("c", "", "Path to YAML configuration file")
	verbose := flag.Bool("v", false, "Enable verbose per-metric diagnostics")
	version := flag.Bool("version", false, "Print version and exit")
	once := flag.Bool("once", false, "Sample once, push, and exit")
	flag.Parse()

	if *version {
		fmt.Printf("torto-monitor version %s\n", Version)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *verbose {
		cfg.Verbose = true
	}

	levelVar := new(slog.LevelVar)
	if cfg.Verbose {
		levelVar.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sampler, cleanup, err := buildSampler(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	consoleSink := console.NewSink(os.Stdout)
	consoleSink.SetEnabled(cfg.Console.Enabled)

	sink, err := buildSink(ctx, cfg, consoleSink, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	m := monitor.New(sampler, sink,
		monitor.WithLogger(logger),
		monitor.WithInterval(cfg.PollIntervalDuration()),
	)

	if *once {
		if _, err := m.RunOnce(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.DefaultWatchDebounce,
			func(updated *config.Config) {
				if updated.Verbose {
					levelVar.Set(slog.LevelDebug)
				} else {
					levelVar.Set(slog.LevelInfo)
				}
				consoleSink.SetEnabled(updated.Console.Enabled)
				logger.Info("configuration reloaded",
					"verbose", updated.Verbose,
					"console", updated.Console.Enabled,
				)
			},
			func(err error) {
				logger.Warn("config watch error", "error", err)
			},
		)
		if err != nil {
			logger.Warn("config watching disabled", "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	if err := m.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildSampler selects the backend for the configured (or detected) OS
// and, when a remote host is configured, swaps in the SSH runner so the
// shell-out backend samples that machine instead.
func buildSampler(cfg *config.Config, logger *slog.Logger) (platform.Sampler, func(), error) {
	goos := cfg.Platform
	if goos == "" {
		goos = runtime.GOOS
	}

	opts := platform.Options{
		Logger:          logger,
		DiskIndex:       cfg.DiskIndex,
		ChooseDisk:      promptChoice("Multiple storage devices found, choose one:"),
		ConsentElevated: promptYesNo,
	}

	cleanup := func() {}
	if cfg.Remote.Host != "" {
		ssh, err := execx.DialSSH(execx.SSHConfig{
			Host:     cfg.Remote.Host,
			Port:     cfg.Remote.Port,
			User:     cfg.Remote.User,
			KeyPath:  cfg.Remote.KeyPath,
			Password: cfg.Remote.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to remote host: %w", err)
		}
		opts.Runner = ssh
		cleanup = func() { _ = ssh.Close() }
		goos = "darwin" // remote sampling runs the shell-out backend
	}

	sampler, err := platform.NewSamplerForOS(goos, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sampler, cleanup, nil
}

// buildSink assembles the output side: the console line plus, when
// enabled, the Divoom device behind a circuit breaker.
func buildSink(ctx context.Context, cfg *config.Config, consoleSink *console.Sink, logger *slog.Logger) (monitor.Sink, error) {
	sinks := monitor.MultiSink{consoleSink}

	if cfg.Device.Enabled {
		address := cfg.Device.Address
		if address == "" {
			found, err := discoverDevice(ctx, logger)
			if err != nil {
				return nil, err
			}
			address = found
		}

		client := divoom.NewClient(address, logger)
		if cfg.Device.ClockID > 0 {
			selectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := client.SelectClock(selectCtx, cfg.Device.ClockID)
			cancel()
			if err != nil {
				logger.Warn("selecting clock face failed", "clock_id", cfg.Device.ClockID, "error", err)
			}
		}

		sinks = append(sinks, monitor.NewBreakerSink(
			divoom.NewSink(client, cfg.Device.LcdID),
			monitor.BreakerConfig{Logger: logger},
		))
		logger.Info("pushing to device", "address", address, "lcd_id", cfg.Device.LcdID)
	}

	return sinks, nil
}

// discoverDevice finds Divoom devices on the LAN and returns the chosen
// device's IP. No devices is a fatal startup error.
func discoverDevice(ctx context.Context, logger *slog.Logger) (string, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	devices, err := divoom.NewDiscoverer(logger).Discover(discoverCtx)
	if err != nil {
		return "", fmt.Errorf("discovering devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return "", fmt.Errorf("no Divoom devices found on this network (set device.address to skip discovery)")
	case 1:
		logger.Info("discovered device", "name", devices[0].DeviceName, "address", devices[0].DevicePrivateIP)
		return devices[0].DevicePrivateIP, nil
	default:
		options := make([]string, len(devices))
		for i, d := range devices {
			options[i] = d.String()
		}
		idx, err := promptChoice("Multiple devices found, choose one:")(options)
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(devices) {
			return "", fmt.Errorf("device index %d out of range", idx)
		}
		return devices[idx].DevicePrivateIP, nil
	}
}

// promptChoice returns an interactive chooser that lists options on
// stdout and reads an index from stdin.
func promptChoice(header string) func(options []string) (int, error) {
	return func(options []string) (int, error) {
		fmt.Println(header)
		for i, opt := range options {
			fmt.Printf("  [%d] %s\n", i, opt)
		}
		fmt.Print("Choice: ")

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("reading choice: %w", err)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return 0, fmt.Errorf("invalid choice %q: %w", strings.TrimSpace(line), err)
		}
		return idx, nil
	}
}

// promptYesNo asks a yes/no question on stdout and reads the answer
// from stdin. Anything but y/yes declines.
func promptYesNo(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
