// Package console renders readings for the local terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/platform"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "81"})

	missingStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "240"})

	timeStyle = lipgloss.NewStyle().Faint(true)
)

// labels pairs each reading field with its display label, in the same
// order the device dial shows them.
var labels = []string{"CPU", "CPU%", "GPU", "GPU%", "MEM", "DISK"}

// Render formats a reading as a single styled status line:
//
//	15:04:05  CPU 42C  CPU% 17%  GPU 51C  GPU% --  MEM 63%  DISK 38C
func Render(r platform.Reading, now time.Time) string {
	parts := make([]string, 0, len(labels)+1)
	parts = append(parts, timeStyle.Render(now.Format("15:04:05")))

	for i, value := range r.Fields() {
		style := valueStyle
		if value == platform.Sentinel {
			style = missingStyle
		}
		parts = append(parts, labelStyle.Render(labels[i])+" "+style.Render(value))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, joinWithGap(parts)...)
}

// joinWithGap interleaves a two-space gap between parts.
func joinWithGap(parts []string) []string {
	out := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			out = append(out, "  ")
		}
		out = append(out, p)
	}
	return out
}

// Sink writes one rendered line per reading to a writer, typically
// stdout. It can be muted at runtime by the config watcher.
type Sink struct {
	w       io.Writer
	enabled atomic.Bool
	now     func() time.Time
}

// NewSink creates a console sink. The sink starts enabled.
func NewSink(w io.Writer) *Sink {
	s := &Sink{w: w, now: time.Now}
	s.enabled.Store(true)
	return s
}

// SetEnabled mutes or unmutes the sink. Safe to call concurrently with
// Push (the config watcher calls it from its own goroutine).
func (s *Sink) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

func (s *Sink) Name() string {
	return "console"
}

func (s *Sink) Push(_ context.Context, r platform.Reading) error {
	if !s.enabled.Load() {
		return nil
	}
	_, err := fmt.Fprintln(s.w, Render(r, s.now()))
	return err
}
