package backend

import (
	"context"
	"fmt"
	"strings"

	"calixo/internal/domain"
)

type fitResponse struct {
	Verdict    string `json:"verdict"`
	Assessment string `json:"assessment"`
}

func (c *Client) CheckFood(ctx context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error) {
	return c.check(ctx, "/api/check-food", map[string]any{"foodDescription": description, "context": fit}, description)
}

func (c *Client) CheckActivity(ctx context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error) {
	return c.check(ctx, "/api/check-activity", map[string]any{"activityDescription": description, "context": fit}, description)
}

func (c *Client) check(ctx context.Context, path string, payload map[string]any, description string) (domain.FitVerdict, error) {
	if strings.TrimSpace(description) == "" {
		return domain.FitVerdict{}, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	var parsed fitResponse
	if err := c.postJSON(ctx, path, payload, &parsed); err != nil {
		return domain.FitVerdict{}, err
	}
	verdict := domain.ParseVerdict(parsed.Verdict)
	return domain.FitVerdict{
		Verdict:    verdict,
		Headline:   verdict.Headline(),
		Assessment: strings.TrimSpace(parsed.Assessment),
	}, nil
}
