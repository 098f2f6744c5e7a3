// Package divoom is a thin HTTP/JSON client for Divoom LAN display
// devices: discovery of devices on the local network, clock (dial)
// selection, and pushing PC monitor readings to an LCD.
package divoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// userAgent identifies this tool in request headers.
	userAgent = "torto-pc-monitor/1.0"

	// requestTimeout is the per-request timeout for the HTTP client.
	requestTimeout = 10 * time.Second

	// maxResponseBytes limits response body reads; device responses are
	// tiny JSON documents.
	maxResponseBytes = 1 << 20
)

// commandUpdatePCParaInfo is the device command that renders PC monitor
// values on an LCD dial. DispData carries six formatted strings.
const commandUpdatePCParaInfo = "Device/UpdatePCParaInfo"

// commandSetClockSelectID switches the device to the given clock face.
const commandSetClockSelectID = "Channel/SetClockSelectId"

// APIError is a non-zero error_code in a device response.
type APIError struct {
	Command string
	Code    int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("divoom: %s returned error_code %d", e.Command, e.Code)
}

// Client talks to one Divoom device over its LAN HTTP endpoint.
type Client struct {
	postURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the device at the given address
// (IP or host). If logger is nil, a no-op logger is used.
func NewClient(address string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		postURL: fmt.Sprintf("http://%s:80/post", address),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// WithPostURL retargets the client at a different endpoint, replacing
// the default http://<address>:80/post. Used by tests to point at a
// local fake device; returns the client for chaining.
func (c *Client) WithPostURL(url string) *Client {
	c.postURL = url
	return c
}

// deviceResponse is the envelope every device command returns.
type deviceResponse struct {
	ErrorCode int `json:"error_code"`
}

// screenEntry addresses one LCD panel on a multi-dial device.
type screenEntry struct {
	LcdID    int      `json:"LcdId"`
	DispData []string `json:"DispData"`
}

// PushPCInfo sends six formatted display strings to the given LCD.
// The order is fixed by the device firmware: CPU temperature, CPU load,
// GPU temperature, GPU load, memory usage, disk temperature.
func (c *Client) PushPCInfo(ctx context.Context, lcdID int, dispData []string) error {
	payload := map[string]any{
		"Command": commandUpdatePCParaInfo,
		"ScreenList": []screenEntry{
			{LcdID: lcdID, DispData: dispData},
		},
	}
	return c.post(ctx, commandUpdatePCParaInfo, payload)
}

// SelectClock switches the device to the clock face with the given ID,
// typically the PC monitor dial.
func (c *Client) SelectClock(ctx context.Context, clockID int) error {
	payload := map[string]any{
		"Command": commandSetClockSelectID,
		"ClockId": clockID,
	}
	return c.post(ctx, commandSetClockSelectID, payload)
}

// post sends one command envelope and decodes the error_code response.
func (c *Client) post(ctx context.Context, command string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("divoom: encoding %s: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("divoom: building %s request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("divoom: sending %s: %w", command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("divoom: %s returned HTTP %s", command, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("divoom: reading %s response: %w", command, err)
	}

	var dr deviceResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return fmt.Errorf("divoom: decoding %s response: %w", command, err)
	}
	if dr.ErrorCode != 0 {
		return &APIError{Command: command, Code: dr.ErrorCode}
	}

	c.logger.Debug("device command accepted", "command", command)
	return nil
}
