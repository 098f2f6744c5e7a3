// Package platform provides cross-platform hardware telemetry sampling.
// It defines the Sampler interface implemented by OS-specific backends and
// a factory for selecting the backend matching the running OS.
package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/execx"
)

// ErrUnsupportedPlatform is returned by the factory when no backend
// matches the requested operating system.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Sampler is the capability contract every OS backend implements.
// A Sampler is created once at startup, initialized once, sampled
// repeatedly from a single goroutine, and closed once at shutdown.
type Sampler interface {
	// Name returns the backend identifier (e.g. "native", "darwin-shell").
	Name() string

	// Initialize acquires whatever handles or privileges the backend
	// needs. It may prompt the user (disk disambiguation, privilege
	// consent) through the functions supplied in Options. A returned
	// error is fatal: the caller must not enter the sampling loop.
	Initialize(ctx context.Context) error

	// Sample performs one synchronous sampling pass and returns a fully
	// populated Reading. Individual metric failures degrade that field
	// to Sentinel; Sample itself never returns an error.
	Sample(ctx context.Context) Reading

	// Close releases backend resources. Idempotent and safe to call
	// after a failed Initialize.
	Close() error

	// PollInterval is the fixed sampling cadence for this backend.
	PollInterval() time.Duration
}

// Options configures backend construction. The zero value is usable:
// a discard logger is substituted, prompts default to non-interactive
// refusals, and commands run through the local runner.
type Options struct {
	// Logger receives per-metric diagnostics at Debug level.
	Logger *slog.Logger

	// Runner executes external commands for the shell-out backend.
	// Defaults to execx.NewLocal(). Supplying an SSH runner samples a
	// remote machine with the same commands.
	Runner execx.Runner

	// DiskIndex preselects a storage device when several expose
	// temperature sensors, skipping the interactive prompt. Any
	// non-negative value pins that device, so the zero value pins the
	// first one; set -1 to route the choice through ChooseDisk.
	DiskIndex int

	// ChooseDisk is invoked at Initialize when several storage devices
	// are found and DiskIndex is negative. It receives the candidate
	// sensor labels and returns the chosen index. Ignored while
	// DiskIndex is non-negative.
	ChooseDisk func(options []string) (int, error)

	// ConsentElevated is invoked at Initialize when a metric needs
	// elevated privileges that are not already cached. Returning false
	// leaves that metric permanently unavailable.
	ConsentElevated func(prompt string) bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) runner() execx.Runner {
	if o.Runner != nil {
		return o.Runner
	}
	return execx.NewLocal()
}

func (o Options) chooseDisk(options []string) (int, error) {
	if o.DiskIndex >= 0 {
		return o.DiskIndex, nil
	}
	if o.ChooseDisk != nil {
		return o.ChooseDisk(options)
	}
	// Non-interactive default: first device.
	return 0, nil
}

func (o Options) consentElevated(prompt string) bool {
	if o.ConsentElevated != nil {
		return o.ConsentElevated(prompt)
	}
	return false
}
