// Package monitor owns the polling loop: one sampler, one sink, a fixed
// cadence, and a three-state lifecycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/platform"
)

// State is the driver lifecycle state.
type State int

const (
	// StateUninitialized means Run has not been called yet.
	StateUninitialized State = iota
	// StateRunning means the sampling loop is active.
	StateRunning
	// StateStopped means the loop has exited and the sampler is closed.
	StateStopped
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Sink consumes one Reading per sampling pass.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Push delivers a reading. Errors are reported, never escalated:
	// the loop continues on the next interval regardless.
	Push(ctx context.Context, r platform.Reading) error
}

// Monitor drives the sample-push-sleep loop.
type Monitor struct {
	sampler platform.Sampler
	sink    Sink
	logger  *slog.Logger

	// interval overrides the sampler's PollInterval when non-zero.
	interval time.Duration

	mu    sync.Mutex
	state State
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInterval overrides the sampler's fixed poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// New creates a Monitor in the Uninitialized state.
func New(sampler platform.Sampler, sink Sink, opts ...Option) *Monitor {
	m := &Monitor{
		sampler: sampler,
		sink:    sink,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run initializes the sampler and loops until ctx is cancelled. An
// initialization failure is returned without entering the loop; the
// sampler is still closed. Run blocks; cancel the context to stop.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.sampler.Initialize(ctx); err != nil {
		m.setState(StateStopped)
		if cerr := m.sampler.Close(); cerr != nil {
			m.logger.Warn("closing sampler after failed initialize", "error", cerr)
		}
		return fmt.Errorf("initializing %s sampler: %w", m.sampler.Name(), err)
	}

	interval := m.interval
	if interval <= 0 {
		interval = m.sampler.PollInterval()
	}

	m.setState(StateRunning)
	m.logger.Info("monitoring started", "backend", m.sampler.Name(), "interval", interval)

	defer func() {
		if err := m.sampler.Close(); err != nil {
			m.logger.Warn("closing sampler", "error", err)
		}
		m.setState(StateStopped)
		m.logger.Info("monitoring stopped")
	}()

	timer := time.NewTimer(0) // fire the first pass immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		reading := m.sampler.Sample(ctx)
		if err := m.sink.Push(ctx, reading); err != nil {
			if errors.Is(err, ErrBreakerOpen) {
				m.logger.Debug("push skipped", "sink", m.sink.Name(), "error", err)
			} else {
				m.logger.Warn("push failed", "sink", m.sink.Name(), "error", err)
			}
		}

		timer.Reset(interval)
	}
}

// RunOnce performs a single initialize-sample-push cycle and shuts the
// sampler down. Used by the -once flag.
func (m *Monitor) RunOnce(ctx context.Context) (platform.Reading, error) {
	if err := m.sampler.Initialize(ctx); err != nil {
		m.setState(StateStopped)
		if cerr := m.sampler.Close(); cerr != nil {
			m.logger.Warn("closing sampler after failed initialize", "error", cerr)
		}
		return platform.Reading{}, fmt.Errorf("initializing %s sampler: %w", m.sampler.Name(), err)
	}
	m.setState(StateRunning)

	reading := m.sampler.Sample(ctx)
	err := m.sink.Push(ctx, reading)

	if cerr := m.sampler.Close(); cerr != nil {
		m.logger.Warn("closing sampler", "error", cerr)
	}
	m.setState(StateStopped)

	if err != nil {
		return reading, fmt.Errorf("pushing reading: %w", err)
	}
	return reading, nil
}
