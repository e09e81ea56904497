package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"checkin/internal/attendance"
)

// ErrNotFound is returned when the API matched no guest for a scan.
var ErrNotFound = errors.New("guest not found")

// CheckIn is the API answer to a scan.
type CheckIn struct {
	Guest     attendance.RegisteredGuest `json:"guest"`
	Duplicate bool                       `json:"duplicate"`
	Persisted bool                       `json:"persisted"`
	Warning   string                     `json:"warning,omitempty"`
}

// Client submits scans to the check-in API.
type Client struct {
	BaseURL string
	Station string
	HTTP    *http.Client
}

// NewClient creates a client; station is sent so the API can rate limit per station.
func NewClient(baseURL, station string) *Client {
	return &Client{
		BaseURL: baseURL,
		Station: station,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Submit posts one decoded payload to /v1/scan.
func (c *Client) Submit(ctx context.Context, payload string) (*CheckIn, error) {
	body, _ := json.Marshal(map[string]string{"payload": payload})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Station != "" {
		req.Header.Set("X-Station-ID", c.Station)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check-in request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("check-in error %s: %s", resp.Status, string(bodyBytes))
	}

	var out CheckIn
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
