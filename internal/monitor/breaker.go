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

// ErrBreakerOpen is returned by a BreakerSink while it is skipping
// pushes after repeated failures.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState represents the circuit state of a BreakerSink.
type BreakerState int

const (
	// BreakerClosed means pushes pass through normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen means pushes are skipped until the timeout elapses.
	BreakerOpen
	// BreakerHalfOpen means the next push is a recovery probe.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a BreakerSink.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive push failures
	// before the circuit opens. Default: 3.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before the next
	// push becomes a recovery probe. Default: 30 seconds.
	OpenTimeout time.Duration

	// Logger for state transitions. Nil is safe.
	Logger *slog.Logger
}

// BreakerSink wraps a Sink with a circuit breaker so an unreachable
// device degrades to skipped pushes instead of a warning on every pass.
type BreakerSink struct {
	inner  Sink
	config BreakerConfig
	logger *slog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewBreakerSink wraps inner with circuit breaker logic, applying
// defaults for zero config values.
func NewBreakerSink(inner Sink, cfg BreakerConfig) *BreakerSink {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BreakerSink{
		inner:  inner,
		config: cfg,
		logger: logger,
		state:  BreakerClosed,
	}
}

// Name reports the wrapped sink's name.
func (b *BreakerSink) Name() string {
	return b.inner.Name()
}

// State returns the current circuit state.
func (b *BreakerSink) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Push delivers the reading unless the circuit is open. In the open
// state it returns ErrBreakerOpen until OpenTimeout elapses, then lets
// one probe through; a successful probe closes the circuit.
func (b *BreakerSink) Push(ctx context.Context, r platform.Reading) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailure) < b.config.OpenTimeout {
			remaining := b.config.OpenTimeout - time.Since(b.lastFailure)
			b.mu.Unlock()
			return fmt.Errorf("%w (retry in %s)", ErrBreakerOpen, remaining.Truncate(time.Second))
		}
		b.state = BreakerHalfOpen
		b.logger.Info("circuit breaker probing", "sink", b.inner.Name())
	case BreakerHalfOpen, BreakerClosed:
	}
	b.mu.Unlock()

	err := b.inner.Push(ctx, r)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.config.FailureThreshold {
			if b.state != BreakerOpen {
				b.logger.Warn("circuit breaker opened",
					"sink", b.inner.Name(),
					"failures", b.failures,
					"timeout", b.config.OpenTimeout,
				)
			}
			b.state = BreakerOpen
		}
		return err
	}

	if b.state != BreakerClosed {
		b.logger.Info("circuit breaker closed", "sink", b.inner.Name())
	}
	b.state = BreakerClosed
	b.failures = 0
	return nil
}
