// Package provider holds clients for external enrichment services consumed
// on the scoring path.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/caregrid/sentinel/internal/guard"
)

const deviceCircuitKey = "device_registry"

// DeviceLookupClient resolves a device-type bucket for an IP address from
// the device registry service. Lookups carry a hard timeout and fail open to
// "unknown": an enrichment outage must never block or abort scoring.
type DeviceLookupClient struct {
	baseURL string
	client  *http.Client
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewDeviceLookupClient creates a device registry client. An empty baseURL
// disables lookups entirely.
func NewDeviceLookupClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DeviceLookupClient {
	return &DeviceLookupClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: guard.NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

// Resolve returns the device-type bucket for an IP address. Any failure
// (disabled client, open circuit, timeout, bad response) yields "unknown".
func (c *DeviceLookupClient) Resolve(ctx context.Context, ipAddress string) string {
	if c.baseURL == "" || ipAddress == "" {
		return "unknown"
	}
	if res := c.breaker.Check(deviceCircuitKey); !res.Allowed {
		c.logger.Debug("device lookup skipped", "reason", res.Reason)
		return "unknown"
	}

	deviceType, err := c.fetch(ctx, ipAddress)
	if err != nil {
		c.breaker.RecordFailure(deviceCircuitKey)
		c.logger.Warn("device lookup failed, defaulting to unknown", "error", err)
		return "unknown"
	}
	c.breaker.RecordSuccess(deviceCircuitKey)
	return deviceType
}

func (c *DeviceLookupClient) fetch(ctx context.Context, ipAddress string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/devices?ip=%s", c.baseURL, ipAddress), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned %d", resp.StatusCode)
	}

	var body struct {
		DeviceType string `json:"deviceType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.DeviceType == "" {
		return "unknown", nil
	}
	return body.DeviceType, nil
}
