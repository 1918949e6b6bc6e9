package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"calixo/internal/domain"
)

// Suggestions returns coaching tips for today, falling back to the local
// rules when the backend fails or has nothing to say.
func (v *Voice) Suggestions(ctx context.Context) []domain.Suggestion {
	summary := v.store.Load().Summarize(v.store.Today())

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	remote, err := v.svc.Suggestions.Suggestions(callCtx, summary)
	if err != nil {
		v.logger.Info("using local suggestions", zap.Error(err))
	}
	if err != nil || len(remote) == 0 {
		return domain.LocalSuggestions(summary)
	}
	return remote
}

// ReadDashboard speaks today's totals.
func (v *Voice) ReadDashboard(ctx context.Context) error {
	summary := v.store.Load().Summarize(v.store.Today())
	return v.player.Speak(ctx, dashboardScript(summary), domain.ControlVoiceDashboard, nil)
}

// ReadSuggestions speaks the current coaching tips.
func (v *Voice) ReadSuggestions(ctx context.Context) error {
	suggestions := v.Suggestions(ctx)
	lines := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		lines = append(lines, s.Text)
	}
	return v.player.Speak(ctx, strings.Join(lines, " "), domain.ControlVoiceSuggestions, nil)
}

// CoachBriefing asks the backend for a short spoken briefing and plays it.
func (v *Voice) CoachBriefing(ctx context.Context) error {
	summary := v.store.Load().Summarize(v.store.Today())
	v.controls.Set(domain.ControlVoiceBriefing, "Analyzing…", true)

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	script, err := v.svc.Briefing.Briefing(callCtx, summary)
	cancel()
	v.controls.Reset(domain.ControlVoiceBriefing, "")
	if err != nil {
		v.logger.Warn("coach briefing failed", zap.Error(err))
		v.sessionError(domain.ErrorCodeBackend, err)
		return fmt.Errorf("coach briefing: %w", err)
	}
	if strings.TrimSpace(script) == "" {
		script = dashboardScript(summary)
	}
	return v.player.Speak(ctx, script, domain.ControlVoiceBriefing, nil)
}

// StopAudio silences any playback.
func (v *Voice) StopAudio() bool {
	return v.player.Stop()
}

func dashboardScript(summary domain.DaySummary) string {
	goals := summary.Goals
	var b strings.Builder
	fmt.Fprintf(&b, "Today you've had %s of %s calories and %s of %s grams of protein.",
		spoken(summary.Totals.Calories), spoken(goals.CalorieGoal),
		spoken(summary.Totals.Protein), spoken(goals.ProteinGoal))
	if len(summary.Activity) == 0 {
		b.WriteString(" No activity logged yet.")
	} else {
		fmt.Fprintf(&b, " You've been active for %s of %s minutes and burned about %d calories.",
			spoken(summary.ActiveMinutes), spoken(goals.ActivityGoal), summary.CaloriesBurned)
	}
	if story := strings.TrimSpace(summary.GoalStory); story != "" {
		fmt.Fprintf(&b, " Your goal: %s", story)
		if !strings.HasSuffix(story, ".") {
			b.WriteString(".")
		}
	}
	return b.String()
}

func spoken(value float64) string {
	return fmt.Sprintf("%d", int(math.Round(value)))
}
