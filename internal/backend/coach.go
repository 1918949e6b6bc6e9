package backend

import (
	"context"
	"strings"

	"calixo/internal/domain"
)

type coachRequest struct {
	DietEntries     []domain.ChatDietLine     `json:"dietEntries"`
	ActivityEntries []domain.ChatActivityLine `json:"activityEntries"`
	Goals           domain.Goals              `json:"goals"`
	GoalStory       string                    `json:"goalStory"`
}

func coachRequestFor(summary domain.DaySummary) coachRequest {
	req := coachRequest{
		DietEntries:     []domain.ChatDietLine{},
		ActivityEntries: []domain.ChatActivityLine{},
		Goals:           summary.Goals,
		GoalStory:       summary.GoalStory,
	}
	for _, entry := range summary.Diet {
		req.DietEntries = append(req.DietEntries, domain.ChatDietLine{Name: entry.Name, Calories: entry.Calories, Protein: entry.Protein})
	}
	for _, entry := range summary.Activity {
		req.ActivityEntries = append(req.ActivityEntries, domain.ChatActivityLine{Type: entry.Type, Duration: entry.Duration, Intensity: entry.Intensity})
	}
	return req
}

type suggestionPayload struct {
	Text string `json:"text" validate:"required"`
	Type string `json:"type"`
}

// Suggestions returns validated tips; items without text are dropped.
func (c *Client) Suggestions(ctx context.Context, summary domain.DaySummary) ([]domain.Suggestion, error) {
	var parsed struct {
		Suggestions []suggestionPayload `json:"suggestions"`
	}
	if err := c.postJSON(ctx, "/api/suggestions", coachRequestFor(summary), &parsed); err != nil {
		return nil, err
	}
	out := make([]domain.Suggestion, 0, len(parsed.Suggestions))
	for _, s := range parsed.Suggestions {
		s.Text = strings.TrimSpace(s.Text)
		if c.checker().Struct(s) != nil {
			continue
		}
		out = append(out, domain.Suggestion{Text: s.Text, Type: domain.ParseSuggestionKind(s.Type)})
	}
	return out, nil
}

// Briefing returns the coach script, possibly empty.
func (c *Client) Briefing(ctx context.Context, summary domain.DaySummary) (string, error) {
	var parsed struct {
		Script string `json:"script"`
	}
	if err := c.postJSON(ctx, "/api/coach-briefing", coachRequestFor(summary), &parsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(parsed.Script), nil
}
