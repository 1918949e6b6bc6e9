package domain

import "fmt"

// SuggestionKind tints a suggestion in the UI.
type SuggestionKind string

const (
	SuggestionSuccess SuggestionKind = "success"
	SuggestionWarning SuggestionKind = "warning"
	SuggestionInfo    SuggestionKind = "info"
)

// ParseSuggestionKind falls back to info.
func ParseSuggestionKind(raw string) SuggestionKind {
	switch k := SuggestionKind(raw); k {
	case SuggestionSuccess, SuggestionWarning, SuggestionInfo:
		return k
	default:
		return SuggestionInfo
	}
}

// Suggestion is one coaching tip.
type Suggestion struct {
	Text string         `json:"text"`
	Type SuggestionKind `json:"type"`
}

// LocalSuggestions derives tips from today's totals without any backend.
func LocalSuggestions(summary DaySummary) []Suggestion {
	goals := summary.Goals
	totals := summary.Totals
	var out []Suggestion

	if len(summary.Diet) == 0 && len(summary.Activity) == 0 {
		return []Suggestion{{
			Text: "Try the Talk or Food tab to get started. Once you log something, you'll see personalized suggestions here.",
			Type: SuggestionInfo,
		}}
	}

	if len(summary.Diet) > 0 {
		switch {
		case totals.Calories < goals.CalorieGoal*0.7:
			out = append(out, Suggestion{
				Text: fmt.Sprintf("You're under your calorie goal (%s / %s). Consider adding a balanced meal or snack if you're trying to maintain or gain.", formatNumber(totals.Calories), formatNumber(goals.CalorieGoal)),
				Type: SuggestionWarning,
			})
		case totals.Calories > goals.CalorieGoal*1.2:
			out = append(out, Suggestion{
				Text: "Calories are above your goal. Try lighter options at your next meal or add a bit more activity to balance.",
				Type: SuggestionWarning,
			})
		default:
			out = append(out, Suggestion{Text: "Your calorie intake looks on track. Keep it up.", Type: SuggestionSuccess})
		}

		if totals.Protein < goals.ProteinGoal*0.6 {
			out = append(out, Suggestion{
				Text: fmt.Sprintf("Protein is low (%sg). Aim for lean meat, eggs, legumes, or Greek yogurt to hit your %sg goal.", formatNumber(totals.Protein), formatNumber(goals.ProteinGoal)),
				Type: SuggestionWarning,
			})
		} else if totals.Protein >= goals.ProteinGoal {
			out = append(out, Suggestion{Text: "You've hit your protein goal today. Great for recovery and satiety.", Type: SuggestionSuccess})
		}
	}

	if len(summary.Activity) > 0 {
		if summary.ActiveMinutes < goals.ActivityGoal {
			out = append(out, Suggestion{
				Text: fmt.Sprintf("You have %s active minutes. Try to reach at least %s minutes (e.g. a brisk walk) for general health.", formatNumber(summary.ActiveMinutes), formatNumber(goals.ActivityGoal)),
				Type: SuggestionWarning,
			})
		} else {
			out = append(out, Suggestion{
				Text: fmt.Sprintf("You've hit your activity goal (%s min). That supports heart health and energy.", formatNumber(summary.ActiveMinutes)),
				Type: SuggestionSuccess,
			})
		}
	} else {
		out = append(out, Suggestion{
			Text: "No activity logged yet. Even 10–15 minutes of walking can help. Log when you're done.",
			Type: SuggestionWarning,
		})
	}

	if len(summary.Diet) == 0 {
		out = append(out, Suggestion{
			Text: "Log your meals and snacks so we can help you stay on track with nutrition.",
			Type: SuggestionInfo,
		})
	}

	return out
}
