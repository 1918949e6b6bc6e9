package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"calixo/internal/domain"
)

// Transcribe uploads the clip as multipart field "audio".
func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	mimeType := clip.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="voice.%s"`, extensionFor(mimeType)))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	raw, err := c.send(ctx, "/api/speech-to-text", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "mp4"):
		return "mp4"
	case strings.Contains(mimeType, "wav"):
		return "wav"
	default:
		return "webm"
	}
}

type parseRequest struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type rawActivity struct {
	Type      string   `json:"type"`
	Duration  *float64 `json:"duration"`
	Intensity string   `json:"intensity"`
}

// InterpretFood returns the validated food items. A response that does not
// decode counts as nothing understood.
func (c *Client) InterpretFood(ctx context.Context, transcript string) ([]domain.FoodItem, error) {
	var parsed struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.postJSON(ctx, "/api/parse-speech", parseRequest{Type: "food", Transcript: transcript}, &parsed); err != nil {
		if isDecodeError(err) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]domain.FoodItem, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		var item domain.FoodItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		item.Name = strings.TrimSpace(item.Name)
		item.Quantity = strings.TrimSpace(item.Quantity)
		if err := c.checker().Struct(item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// InterpretActivity returns the validated activities, defaulting unclear
// intensities to moderate.
func (c *Client) InterpretActivity(ctx context.Context, transcript string) ([]domain.ActivityItem, error) {
	var parsed struct {
		Activities []json.RawMessage `json:"activities"`
	}
	if err := c.postJSON(ctx, "/api/parse-speech", parseRequest{Type: "activity", Transcript: transcript}, &parsed); err != nil {
		if isDecodeError(err) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]domain.ActivityItem, 0, len(parsed.Activities))
	for _, raw := range parsed.Activities {
		var candidate rawActivity
		if err := json.Unmarshal(raw, &candidate); err != nil || candidate.Duration == nil {
			continue
		}
		item := domain.ActivityItem{
			Type:      domain.ActivityType(strings.ToLower(strings.TrimSpace(candidate.Type))),
			Duration:  *candidate.Duration,
			Intensity: domain.ParseIntensity(candidate.Intensity),
		}
		if err := c.checker().Struct(item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
