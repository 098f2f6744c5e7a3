package divoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// discoveryURL is Divoom's cloud endpoint that lists devices sharing the
// caller's LAN. There is no local broadcast protocol; the device phones
// home and the cloud answers for it.
const discoveryURL = "http://app.divoom-gps.com/Device/ReturnSameLANDevice"

// Device is one entry from LAN discovery.
type Device struct {
	DeviceName      string `json:"DeviceName"`
	DeviceID        int    `json:"DeviceId"`
	DevicePrivateIP string `json:"DevicePrivateIP"`
	DeviceMac       string `json:"DeviceMac"`
}

// String renders a Device for selection prompts.
func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.DeviceName, d.DevicePrivateIP)
}

// discoveryResponse is the cloud endpoint's envelope.
type discoveryResponse struct {
	ReturnCode    int      `json:"ReturnCode"`
	ReturnMessage string   `json:"ReturnMessage"`
	DeviceList    []Device `json:"DeviceList"`
}

// Discoverer finds Divoom devices on the local network.
type Discoverer struct {
	// URL overrides the discovery endpoint, for tests.
	URL        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDiscoverer creates a Discoverer with a 10-second request timeout.
// If logger is nil, a no-op logger is used.
func NewDiscoverer(logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Discoverer{
		URL: discoveryURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// Discover returns the devices visible on this LAN. An empty list is
// not an error here; the caller decides whether that is fatal.
func (d *Discoverer) Discover(ctx context.Context) ([]Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("divoom: building discovery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("divoom: discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("divoom: discovery returned HTTP %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("divoom: reading discovery response: %w", err)
	}

	var dr discoveryResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return nil, fmt.Errorf("divoom: decoding discovery response: %w", err)
	}
	if dr.ReturnCode != 0 {
		return nil, fmt.Errorf("divoom: discovery failed: %s (code %d)", dr.ReturnMessage, dr.ReturnCode)
	}

	d.logger.Debug("discovered devices", "count", len(dr.DeviceList), "elapsed", time.Since(start))
	return dr.DeviceList, nil
}
