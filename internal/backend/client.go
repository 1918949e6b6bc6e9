package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"calixo/internal/ports"
)

const defaultBaseURL = "http://localhost:3001"

// Client calls the FitTrack API. AI responses are validated at this
// boundary; malformed items are dropped rather than passed on.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	validateOnce sync.Once
	validate     *validator.Validate
}

func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// checker is safe for concurrent use, including on a zero Client.
func (c *Client) checker() *validator.Validate {
	c.validateOnce.Do(func() {
		if c.validate == nil {
			c.validate = validator.New(validator.WithRequiredStructEnabled())
		}
	})
	return c.validate
}

func (c *Client) baseURL() string {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		return defaultBaseURL
	}
	return baseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: 60 * time.Second}
	}
	return c.HTTPClient
}

// postJSON sends payload and decodes a 2xx JSON answer into out.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}
	raw, err := c.send(ctx, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s request: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ports.StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
