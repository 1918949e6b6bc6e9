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

// AnalyzeFoodImage uploads the photo as multipart field "image" and returns
// the readable analysis.
func (c *Client) AnalyzeFoodImage(ctx context.Context, photo domain.FoodPhoto) (string, error) {
	if len(photo.Data) == 0 {
		return "", fmt.Errorf("%w: no image data", domain.ErrInvalidInput)
	}

	mimeType := photo.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="meal.%s"`, imageExtension(mimeType)))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(photo.Data); err != nil {
		return "", fmt.Errorf("write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	raw, err := c.send(ctx, "/api/analyze-food-image", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Text    string `json:"text"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode image analysis: %w", err)
	}
	if text := strings.TrimSpace(parsed.Text); text != "" {
		return text, nil
	}
	return strings.TrimSpace(parsed.Summary), nil
}

func imageExtension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return "png"
	case strings.Contains(mimeType, "webp"):
		return "webp"
	case strings.Contains(mimeType, "gif"):
		return "gif"
	default:
		return "jpg"
	}
}
