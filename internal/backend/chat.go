package backend

import (
	"context"
	"strings"

	"calixo/internal/domain"
)

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
	Context  domain.ChatContext   `json:"context"`
}

type suggestedGoalsPayload struct {
	CalorieGoal  *float64 `json:"calorieGoal" validate:"omitempty,gt=0"`
	ProteinGoal  *float64 `json:"proteinGoal" validate:"omitempty,gte=0"`
	ActivityGoal *float64 `json:"activityGoal" validate:"omitempty,gte=0"`
	GoalStory    string   `json:"goalStory"`
}

func (c *Client) Chat(ctx context.Context, history []domain.ChatMessage, snapshot domain.ChatContext) (domain.ChatReply, error) {
	var parsed struct {
		Reply          string                 `json:"reply"`
		SuggestedGoals *suggestedGoalsPayload `json:"suggestedGoals"`
	}
	if err := c.postJSON(ctx, "/api/chat", chatRequest{Messages: history, Context: snapshot}, &parsed); err != nil {
		return domain.ChatReply{}, err
	}

	reply := domain.ChatReply{Reply: strings.TrimSpace(parsed.Reply)}
	if goals := parsed.SuggestedGoals; goals != nil && c.checker().Struct(goals) == nil {
		reply.SuggestedGoals = &domain.SuggestedGoals{
			CalorieGoal:  goals.CalorieGoal,
			ProteinGoal:  goals.ProteinGoal,
			ActivityGoal: goals.ActivityGoal,
			GoalStory:    strings.TrimSpace(goals.GoalStory),
		}
	}
	return reply, nil
}
