package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"calixo/internal/domain"
)

const (
	noFoodMessage     = `No food items understood. Try e.g. "rice one cup, chicken 200 grams".`
	noActivityMessage = `No activity understood. Try e.g. "I walked 30 minutes".`
	interpretFailed   = "Could not understand that right now. Please try again."
)

// logFoods interprets transcript and logs every item whose nutrition lookup
// succeeds. Lookups run one at a time in transcript order.
func (v *Voice) logFoods(ctx context.Context, transcript string) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	items, err := v.svc.Interpreter.InterpretFood(callCtx, transcript)
	cancel()
	if err != nil {
		v.logger.Warn("food interpretation failed", zap.Error(err))
		v.sessionError(domain.ErrorCodeInterpret, err)
		return interpretFailed, 0, fmt.Errorf("interpret food: %w", err)
	}
	if len(items) == 0 {
		return noFoodMessage, 0, nil
	}

	var names []string
	for _, item := range items {
		entry, err := v.logFoodItem(ctx, item)
		if err != nil {
			v.logger.Warn("food item skipped", zap.String("food", item.Name), zap.Error(err))
			continue
		}
		names = append(names, entry.Name)
	}

	if len(names) == len(items) {
		return fmt.Sprintf("Added %d item(s): %s.", len(names), strings.Join(names, ", ")), len(names), nil
	}
	return fmt.Sprintf("Added %d of %d item(s).", len(names), len(items)), len(names), nil
}

func (v *Voice) logFoodItem(ctx context.Context, item domain.FoodItem) (domain.DietEntry, error) {
	query := domain.QueryForItem(item)
	if query.FoodName == "" {
		return domain.DietEntry{}, fmt.Errorf("%w: food name is required", domain.ErrInvalidInput)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	nutrition, err := v.svc.Nutrition.LookupNutrition(callCtx, query)
	if err != nil {
		return domain.DietEntry{}, fmt.Errorf("lookup nutrition for %q: %w", query.FoodName, err)
	}

	name := strings.TrimSpace(nutrition.Name)
	if name == "" {
		name = query.FoodName
	}
	return v.store.AddDietEntry(domain.DietInput{
		Name:     name,
		Calories: nutrition.Calories,
		Protein:  nutrition.Protein,
		Carbs:    nutrition.Carbs,
		Fat:      nutrition.Fat,
	})
}

func (v *Voice) logActivities(ctx context.Context, transcript string) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	items, err := v.svc.Interpreter.InterpretActivity(callCtx, transcript)
	cancel()
	if err != nil {
		v.logger.Warn("activity interpretation failed", zap.Error(err))
		v.sessionError(domain.ErrorCodeInterpret, err)
		return interpretFailed, 0, fmt.Errorf("interpret activity: %w", err)
	}
	if len(items) == 0 {
		return noActivityMessage, 0, nil
	}

	added := 0
	for _, item := range items {
		if _, err := v.store.AddActivityEntry(activityInput(item)); err != nil {
			v.logger.Warn("activity skipped", zap.String("type", string(item.Type)), zap.Error(err))
			continue
		}
		added++
	}

	if added == len(items) {
		return fmt.Sprintf("Added %d activity session(s).", added), added, nil
	}
	return fmt.Sprintf("Added %d of %d activity session(s).", added, len(items)), added, nil
}

// extract logs whatever food and activity the transcript mentions. Failures
// are logged and ignored; the transcript still goes on to the chat.
func (v *Voice) extract(ctx context.Context, transcript string) domain.LogCounts {
	var counts domain.LogCounts

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	foods, err := v.svc.Interpreter.InterpretFood(callCtx, transcript)
	cancel()
	if err != nil {
		v.logger.Debug("food extraction failed", zap.Error(err))
	}
	for _, item := range foods {
		if _, err := v.logFoodItem(ctx, item); err != nil {
			v.logger.Debug("extracted food skipped", zap.String("food", item.Name), zap.Error(err))
			continue
		}
		counts.Foods++
	}

	callCtx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
	activities, err := v.svc.Interpreter.InterpretActivity(callCtx, transcript)
	cancel()
	if err != nil {
		v.logger.Debug("activity extraction failed", zap.Error(err))
	}
	for _, item := range activities {
		if _, err := v.store.AddActivityEntry(activityInput(item)); err != nil {
			continue
		}
		counts.Activities++
	}
	return counts
}

func activityInput(item domain.ActivityItem) domain.ActivityInput {
	return domain.ActivityInput{
		Type:      string(item.Type),
		Duration:  item.Duration,
		Intensity: string(item.Intensity),
	}
}

func (v *Voice) fitContext() domain.FitContext {
	summary := v.store.Load().Summarize(v.store.Today())
	return domain.FitContext{
		Goals:                summary.Goals,
		GoalStory:            summary.GoalStory,
		TodayCalories:        summary.Totals.Calories,
		TodayProtein:         summary.Totals.Protein,
		TodayActivityMinutes: summary.ActiveMinutes,
	}
}

func (v *Voice) fitCheck(ctx context.Context, mode domain.Mode, description string) (domain.FitVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	var (
		verdict domain.FitVerdict
		err     error
	)
	if mode == domain.ModeCheckActivity {
		verdict, err = v.svc.Fit.CheckActivity(callCtx, description, v.fitContext())
	} else {
		verdict, err = v.svc.Fit.CheckFood(callCtx, description, v.fitContext())
	}
	if err != nil {
		v.logger.Warn("fit check failed", zap.String("mode", string(mode)), zap.Error(err))
		v.sessionError(domain.ErrorCodeBackend, err)
		return domain.FitVerdict{}, fmt.Errorf("check %s: %w", mode, err)
	}
	return verdict, nil
}

// ChatHistory returns the transcript of surface. An empty transcript opens
// with the welcome message.
func (v *Voice) ChatHistory(surface domain.ChatSurface) []domain.ChatMessage {
	history := v.store.ChatLog(surface)
	if len(history) == 0 {
		history = []domain.ChatMessage{{Role: domain.ChatRoleAssistant, Content: domain.WelcomeMessage}}
	}
	return history
}

// WelcomeTalk speaks the talk greeting when the transcript holds nothing else.
// It speaks at most once per Voice and reports whether it did.
func (v *Voice) WelcomeTalk(ctx context.Context) (bool, error) {
	history := v.ChatHistory(domain.ChatSurfaceTalk)
	if len(history) != 1 || history[0].Role != domain.ChatRoleAssistant {
		return false, nil
	}
	if v.recorder.Status().Active {
		return false, nil
	}

	v.welcomeMu.Lock()
	if v.welcomed {
		v.welcomeMu.Unlock()
		return false, nil
	}
	v.welcomed = true
	v.welcomeMu.Unlock()

	if err := v.player.Speak(ctx, history[0].Content, domain.ControlTalk, nil); err != nil {
		v.sessionError(domain.ErrorCodePlayback, err)
		return true, err
	}
	return true, nil
}

// chatTurn appends text and the reply to surface's transcript. A failed turn
// still records the fallback reply so the transcript reads naturally.
func (v *Voice) chatTurn(ctx context.Context, surface domain.ChatSurface, text string) (domain.ChatReply, error) {
	history := append(v.ChatHistory(surface), domain.ChatMessage{Role: domain.ChatRoleUser, Content: text})
	snapshot := domain.ChatContextFor(v.store.Load(), v.store.Today())

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	reply, err := v.svc.Chat.Chat(callCtx, history, snapshot)
	cancel()
	if err != nil {
		v.logger.Warn("chat turn failed", zap.String("surface", string(surface)), zap.Error(err))
		reply = domain.ChatReply{}
		err = fmt.Errorf("chat: %w", err)
	}
	if strings.TrimSpace(reply.Reply) == "" {
		reply.Reply = domain.ChatFallbackReply
	}

	history = append(history, domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: reply.Reply})
	if saveErr := v.store.SaveChatLog(surface, history); saveErr != nil {
		v.logger.Warn("chat log not saved", zap.String("surface", string(surface)), zap.Error(saveErr))
		v.sessionError(domain.ErrorCodeStorage, saveErr)
	}

	if proposal := reply.SuggestedGoals; proposal != nil && strings.TrimSpace(proposal.GoalStory) != "" {
		if goalErr := v.store.SetGoals(proposal.Goals(), strings.TrimSpace(proposal.GoalStory)); goalErr != nil {
			v.logger.Warn("suggested goals not applied", zap.Error(goalErr))
			v.sessionError(domain.ErrorCodeStorage, goalErr)
		}
	}
	return reply, err
}
