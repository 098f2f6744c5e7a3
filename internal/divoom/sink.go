package divoom

import (
	"context"

	"github.com/emiliano1616/torto-pc-monitor-divoom/internal/platform"
)

// Sink adapts a Client to the monitor's output sink contract, pushing
// each reading to one LCD panel.
type Sink struct {
	client *Client
	lcdID  int
}

// NewSink creates a Sink targeting the given LCD panel.
func NewSink(client *Client, lcdID int) *Sink {
	return &Sink{client: client, lcdID: lcdID}
}

func (s *Sink) Name() string {
	return "divoom"
}

func (s *Sink) Push(ctx context.Context, r platform.Reading) error {
	return s.client.PushPCInfo(ctx, s.lcdID, r.Fields())
}
