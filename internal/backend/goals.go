package backend

import (
	"context"
	"fmt"
	"strings"

	"calixo/internal/domain"
)

// AnalyzeGoals asks the API to derive daily goals from a fitness story.
// Goals the answer leaves out fall back to the defaults.
func (c *Client) AnalyzeGoals(ctx context.Context, story string) (domain.Goals, error) {
	story = strings.TrimSpace(story)
	if story == "" {
		return domain.Goals{}, fmt.Errorf("%w: tell us your fitness story", domain.ErrInvalidInput)
	}

	var parsed suggestedGoalsPayload
	if err := c.postJSON(ctx, "/api/analyze-goals", map[string]string{"story": story}, &parsed); err != nil {
		return domain.Goals{}, err
	}
	if err := c.checker().Struct(parsed); err != nil {
		return domain.Goals{}, fmt.Errorf("goal analysis rejected: %w", err)
	}
	return domain.SuggestedGoals{
		CalorieGoal:  parsed.CalorieGoal,
		ProteinGoal:  parsed.ProteinGoal,
		ActivityGoal: parsed.ActivityGoal,
	}.Goals(), nil
}
