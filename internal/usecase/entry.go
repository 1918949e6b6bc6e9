package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"calixo/internal/domain"
)

// LogFood looks up one typed food and logs it. Both the name and an amount
// are required; nothing is sent to the backend otherwise.
func (v *Voice) LogFood(ctx context.Context, name, amount string) (domain.DietEntry, error) {
	name = strings.TrimSpace(name)
	amount = strings.TrimSpace(amount)
	if name == "" {
		return domain.DietEntry{}, fmt.Errorf("%w: food name is required", domain.ErrInvalidInput)
	}
	if amount == "" {
		return domain.DietEntry{}, fmt.Errorf("%w: enter grams or a quantity", domain.ErrInvalidInput)
	}
	return v.logFoodItem(ctx, domain.FoodItem{Name: name, Quantity: amount})
}

// LogActivity logs a typed activity session. The burn estimate is computed
// locally.
func (v *Voice) LogActivity(input domain.ActivityInput) (domain.ActivityEntry, error) {
	return v.store.AddActivityEntry(input)
}

func (v *Voice) CheckFood(ctx context.Context, description string) (domain.FitVerdict, error) {
	return v.checkText(ctx, domain.ModeCheckFood, description, "Describe the food (e.g. chicken breast 200g, a slice of pizza).")
}

func (v *Voice) CheckActivity(ctx context.Context, description string) (domain.FitVerdict, error) {
	return v.checkText(ctx, domain.ModeCheckActivity, description, "Describe the activity (e.g. 30 min walk, 1 hour gym).")
}

func (v *Voice) checkText(ctx context.Context, mode domain.Mode, description, prompt string) (domain.FitVerdict, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.FitVerdict{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, prompt)
	}
	return v.fitCheck(ctx, mode, description)
}

// SendChat runs one typed turn of the goals chat.
func (v *Voice) SendChat(ctx context.Context, text string) (domain.ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatReply{}, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}
	return v.chatTurn(ctx, domain.ChatSurfaceGoals, text)
}

// AnalyzeGoals derives daily goals from a fitness story and saves them
// together with the story.
func (v *Voice) AnalyzeGoals(ctx context.Context, story string) (domain.Goals, error) {
	story = strings.TrimSpace(story)
	if story == "" {
		return domain.Goals{}, fmt.Errorf("%w: please tell us your fitness story", domain.ErrInvalidInput)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	goals, err := v.svc.Goals.AnalyzeGoals(callCtx, story)
	cancel()
	if err != nil {
		v.logger.Warn("goal analysis failed", zap.Error(err))
		v.sessionError(domain.ErrorCodeBackend, err)
		return domain.Goals{}, fmt.Errorf("analyze goals: %w", err)
	}
	if err := v.store.SetGoals(goals, story); err != nil {
		return domain.Goals{}, err
	}
	return goals, nil
}

// AnalyzeFoodImage returns the backend's description of a meal photo. Nothing
// is logged until LogPhotoMeal.
func (v *Voice) AnalyzeFoodImage(ctx context.Context, photo domain.FoodPhoto) (string, error) {
	if len(photo.Data) == 0 {
		return "", fmt.Errorf("%w: choose an image", domain.ErrInvalidInput)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	analysis, err := v.svc.Vision.AnalyzeFoodImage(callCtx, photo)
	if err != nil {
		v.logger.Warn("image analysis failed", zap.Error(err))
		v.sessionError(domain.ErrorCodeBackend, err)
		return "", fmt.Errorf("analyze image: %w", err)
	}
	return analysis, nil
}

// LogPhotoMeal adds one entry for an analyzed photo. Calories come from the
// analysis total line; macros are left at zero.
func (v *Voice) LogPhotoMeal(analysis string) (domain.DietEntry, error) {
	if strings.TrimSpace(analysis) == "" {
		return domain.DietEntry{}, fmt.Errorf("%w: analyze a photo first", domain.ErrInvalidInput)
	}
	return v.store.AddDietEntry(domain.PhotoMealInput(analysis))
}
