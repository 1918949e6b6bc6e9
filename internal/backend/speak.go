package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Synthesize returns encoded speech (audio/mpeg) for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal speech payload: %w", err)
	}
	audio, err := c.send(ctx, "/api/text-to-speech", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty speech response")
	}
	return audio, nil
}
