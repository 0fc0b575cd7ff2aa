// Package backend talks to the REST backend that owns rides and emergency handling.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/tracking"
)

var ErrBadStatus = errors.New("backend: unexpected status")

// Client posts SOS reports to {baseURL}/emergency/sos. It satisfies tracking.EmergencyReporter.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient builds a client; token, when set, is sent as a bearer token.
func NewClient(baseURL, token string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type sosRequest struct {
	RideID    string  `json:"rideId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Send implements tracking.EmergencyReporter. Non-2xx responses fail with ErrBadStatus.
func (client *Client) Send(ctx context.Context, report tracking.SOSReport) error {
	body, err := json.Marshal(sosRequest{
		RideID:    report.RideID,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
	})
	if err != nil {
		return fmt.Errorf("marshal sos request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/emergency/sos", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sos request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}

	start := time.Now()
	resp, err := client.http.Do(req)
	if err != nil {
		return fmt.Errorf("post sos: %w", err)
	}
	defer resp.Body.Close()

	// keep a short excerpt for diagnostics
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	client.logger.Info(ctx, "backend_sos_sent", "SOS forwarded to backend", map[string]any{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
