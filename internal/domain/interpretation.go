package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// FoodItem is one food the interpreter pulled out of a transcript.
type FoodItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity"`
}

// ActivityItem is one activity the interpreter pulled out of a transcript.
type ActivityItem struct {
	Type      ActivityType `json:"type" validate:"required,oneof=walk run cycle gym sports other"`
	Duration  float64      `json:"duration" validate:"gte=0"`
	Intensity Intensity    `json:"intensity"`
}

// NutritionQuery asks for the macros of one portion. Exactly one of Grams or
// Quantity is set.
type NutritionQuery struct {
	FoodName string  `json:"foodName"`
	Grams    float64 `json:"grams,omitempty"`
	Quantity string  `json:"quantity,omitempty"`
}

// Nutrition is the resolved macro breakdown of a portion.
type Nutrition struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories" validate:"gte=0"`
	Protein  float64 `json:"protein" validate:"gte=0"`
	Carbs    float64 `json:"carbs" validate:"gte=0"`
	Fat      float64 `json:"fat" validate:"gte=0"`
}

var gramsPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(?:g|grams?)$`)

// QueryForItem turns a spoken amount into a lookup query: "150g" and
// "200 grams" become gram queries, anything else a portion phrase.
func QueryForItem(item FoodItem) NutritionQuery {
	name := strings.TrimSpace(item.Name)
	quantity := strings.TrimSpace(item.Quantity)
	if match := gramsPattern.FindStringSubmatch(quantity); match != nil {
		if grams, err := strconv.ParseFloat(match[1], 64); err == nil && grams > 0 {
			return NutritionQuery{FoodName: name, Grams: grams}
		}
	}
	if quantity == "" {
		quantity = "1 serving"
	}
	return NutritionQuery{FoodName: name, Quantity: quantity}
}

// ChatRole is the speaker of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a persisted chat transcript.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatSurface names a persisted chat transcript.
type ChatSurface string

const (
	ChatSurfaceGoals ChatSurface = "goals"
	ChatSurfaceTalk  ChatSurface = "talk"
)

// WelcomeMessage seeds an empty goals or talk chat.
const WelcomeMessage = "Hi! I'm Calixo, your fitness coach. Tell me what you'd like to achieve—lose weight, get stronger, eat better—and I'll help you set goals and give you personalized suggestions here and in your Suggestions tab."

// PhotoMealName names diet entries logged from a meal photo.
const PhotoMealName = "Meal from photo"

var photoTotalPattern = regexp.MustCompile(`[Tt]otal[:\s]*[Aa]bout\s*(\d+)\s*calories?`)

// CaloriesFromPhotoAnalysis reads the "Total: about N calories" line of a
// photo analysis, or 0 when the analysis has none.
func CaloriesFromPhotoAnalysis(analysis string) float64 {
	match := photoTotalPattern.FindStringSubmatch(analysis)
	if match == nil {
		return 0
	}
	calories, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return calories
}

// PhotoMealInput is the diet entry for a meal photo. Only calories are
// recovered from the analysis text.
func PhotoMealInput(analysis string) DietInput {
	return DietInput{Name: PhotoMealName, Calories: CaloriesFromPhotoAnalysis(analysis)}
}

// ChatFallbackReply is stored when the chat backend fails.
const ChatFallbackReply = "Sorry, I couldn't respond right now. Please try again."

// ChatContext is the snapshot of today's state sent with every chat turn.
type ChatContext struct {
	DietEntries     []ChatDietLine     `json:"dietEntries"`
	ActivityEntries []ChatActivityLine `json:"activityEntries"`
	Goals           Goals              `json:"goals"`
	GoalStory       string             `json:"goalStory"`
}

type ChatDietLine struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
}

type ChatActivityLine struct {
	Type      ActivityType `json:"type"`
	Duration  float64      `json:"duration"`
	Intensity Intensity    `json:"intensity"`
}

// ChatContextFor builds the chat snapshot for date.
func ChatContextFor(record TrackingRecord, date string) ChatContext {
	ctx := ChatContext{
		DietEntries:     []ChatDietLine{},
		ActivityEntries: []ChatActivityLine{},
		Goals:           record.EffectiveGoals(),
		GoalStory:       record.GoalStory,
	}
	for _, entry := range record.Diet[date] {
		ctx.DietEntries = append(ctx.DietEntries, ChatDietLine{Name: entry.Name, Calories: entry.Calories, Protein: entry.Protein})
	}
	for _, entry := range record.Activity[date] {
		ctx.ActivityEntries = append(ctx.ActivityEntries, ChatActivityLine{Type: entry.Type, Duration: entry.Duration, Intensity: entry.Intensity})
	}
	return ctx
}

// SuggestedGoals is a goal proposal carried by a chat reply.
type SuggestedGoals struct {
	CalorieGoal  *float64 `json:"calorieGoal,omitempty"`
	ProteinGoal  *float64 `json:"proteinGoal,omitempty"`
	ActivityGoal *float64 `json:"activityGoal,omitempty"`
	GoalStory    string   `json:"goalStory"`
}

// Goals resolves the proposal against defaults.
func (s SuggestedGoals) Goals() Goals {
	goals := DefaultGoals()
	if s.CalorieGoal != nil {
		goals.CalorieGoal = *s.CalorieGoal
	}
	if s.ProteinGoal != nil {
		goals.ProteinGoal = *s.ProteinGoal
	}
	if s.ActivityGoal != nil {
		goals.ActivityGoal = *s.ActivityGoal
	}
	return goals
}

// ChatReply is the chat backend's answer.
type ChatReply struct {
	Reply          string          `json:"reply"`
	SuggestedGoals *SuggestedGoals `json:"suggestedGoals,omitempty"`
}

// FitContext is the goal snapshot sent with a fit check.
type FitContext struct {
	Goals                Goals   `json:"goals"`
	GoalStory            string  `json:"goalStory"`
	TodayCalories        float64 `json:"todayCalories,omitempty"`
	TodayProtein         float64 `json:"todayProtein,omitempty"`
	TodayActivityMinutes float64 `json:"todayActivityMinutes,omitempty"`
}

// Verdict grades a food or activity against the user's goals.
type Verdict string

const (
	VerdictFits    Verdict = "fits"
	VerdictCaution Verdict = "caution"
	VerdictAvoid   Verdict = "avoid"
)

// ParseVerdict falls back to caution for anything unrecognized.
func ParseVerdict(raw string) Verdict {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(raw))); v {
	case VerdictFits, VerdictAvoid, VerdictCaution:
		return v
	default:
		return VerdictCaution
	}
}

func (v Verdict) Headline() string {
	switch v {
	case VerdictFits:
		return "Fits your goals"
	case VerdictAvoid:
		return "Doesn't fit your goals"
	default:
		return "Use with caution"
	}
}

// FitVerdict is the result of a check-food or check-activity call.
type FitVerdict struct {
	Verdict    Verdict `json:"verdict"`
	Headline   string  `json:"headline"`
	Assessment string  `json:"assessment"`
}

// Health is the remote capability report. RecordStore is nil when the
// server did not report it.
type Health struct {
	OK          bool  `json:"ok"`
	RecordStore *bool `json:"recordStore,omitempty"`
}
