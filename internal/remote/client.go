package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

const defaultBaseURL = "http://localhost:3001"

// Client talks to the record store's /api/data and /api/health endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) Fetch(ctx context.Context) (domain.TrackingRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/data", nil)
	if err != nil {
		return domain.TrackingRecord{}, err
	}
	var record domain.TrackingRecord
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return domain.NewTrackingRecord(), nil
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("decode record: %w", err)
	}
	record.Normalize()
	return record, nil
}

func (c *Client) Store(ctx context.Context, record domain.TrackingRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/api/data", payload)
	return err
}

// healthResponse accepts the legacy "mongodb" flag as an alias.
type healthResponse struct {
	OK          bool  `json:"ok"`
	RecordStore *bool `json:"recordStore"`
	MongoDB     *bool `json:"mongodb"`
}

func (c *Client) Health(ctx context.Context) (domain.Health, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return domain.Health{}, err
	}
	var parsed healthResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Health{}, fmt.Errorf("decode health: %w", err)
	}
	flag := parsed.RecordStore
	if flag == nil {
		flag = parsed.MongoDB
	}
	return domain.Health{OK: parsed.OK, RecordStore: flag}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &ports.StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}
