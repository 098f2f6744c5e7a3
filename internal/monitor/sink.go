package monitor

import (
	"context"
	"errors"
	"strings"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/platform"
)

// MultiSink fans a reading out to several sinks in order. Push errors
// are joined so one failing sink never starves the others.
type MultiSink []Sink

func (m MultiSink) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m MultiSink) Push(ctx context.Context, r platform.Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Push(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
