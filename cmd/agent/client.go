package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiEnvelope struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiError struct {
	Code    string
	Message string
	Status  int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server rejected request: %s (%s)", e.Code, e.Message)
}

type hubClient struct {
	baseURL string
	http    *http.Client
}

func newHubClient(baseURL string) *hubClient {
	return &hubClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type registerResult struct {
	AgentID string `json:"agent_id"`
	Paired  bool   `json:"paired"`
	Online  bool   `json:"online"`
}

func (c *hubClient) Register(ctx context.Context, agentID, agentVersion string, machineInfo map[string]any) (*registerResult, error) {
	var result registerResult
	err := c.post(ctx, "/agent/register", map[string]any{
		"agent_id":      agentID,
		"agent_version": agentVersion,
		"machine_info":  machineInfo,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *hubClient) Heartbeat(ctx context.Context, agentID, agentVersion string, capabilities map[string]any) error {
	return c.post(ctx, "/agent/heartbeat", map[string]any{
		"agent_id":      agentID,
		"agent_version": agentVersion,
		"capabilities":  capabilities,
	}, nil)
}

type pairingCodeResult struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *hubClient) RequestPairingCode(ctx context.Context, agentID string) (*pairingCodeResult, error) {
	var result pairingCodeResult
	err := c.post(ctx, "/agent/pairing/code", map[string]any{
		"agent_id": agentID,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type deviceReport struct {
	DeviceID     string `json:"device_id"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	FWVersion    string `json:"fw_version"`
	Status       string `json:"status"`
}

func (c *hubClient) ReportDevices(ctx context.Context, agentID string, devices []deviceReport) error {
	return c.post(ctx, "/agent/devices/report", map[string]any{
		"agent_id": agentID,
		"devices":  devices,
	}, nil)
}

type jobDescriptor struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	AgentID  string         `json:"agent_id"`
	DeviceID string         `json:"device_id"`
	Payload  map[string]any `json:"payload"`
}

func (c *hubClient) NextJobs(ctx context.Context, agentID string) ([]jobDescriptor, error) {
	var result struct {
		Jobs []jobDescriptor `json:"jobs"`
	}
	err := c.get(ctx, "/agent/jobs/next?agentId="+agentID, &result)
	if err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

func (c *hubClient) ReportJobProgress(ctx context.Context, jobID, agentID, status string, progress int, message string) error {
	body := map[string]any{
		"agent_id": agentID,
		"status":   status,
		"progress": progress,
	}
	if message != "" {
		body["message"] = message
	}
	return c.post(ctx, "/agent/jobs/"+jobID+"/progress", body, nil)
}

func (c *hubClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *hubClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *hubClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !envelope.OK {
		return &apiError{
			Code:    envelope.Error,
			Message: envelope.Message,
			Status:  resp.StatusCode,
		}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}

	return nil
}
