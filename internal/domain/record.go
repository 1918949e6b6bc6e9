package domain

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrInvalidInput rejects a mutation before any side effect happens.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultCalorieGoal  = 2000
	DefaultProteinGoal  = 50
	DefaultActivityGoal = 30

	DateLayout = "2006-01-02"
)

// DietEntry is one logged food.
type DietEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ActivityEntry is one logged activity session. CaloriesBurned is nil for
// records written before the value was persisted.
type ActivityEntry struct {
	ID             string       `json:"id"`
	Type           ActivityType `json:"type"`
	Duration       float64      `json:"duration"`
	Intensity      Intensity    `json:"intensity"`
	CaloriesBurned *int         `json:"caloriesBurned,omitempty"`
	Benefits       []string     `json:"benefits,omitempty"`
}

// DietInput is a food about to be logged.
type DietInput struct {
	Name     string
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// ActivityInput is a session about to be logged.
type ActivityInput struct {
	Type      string
	Duration  float64
	Intensity string
}

// Validate rejects blank names and non-finite macros.
func (in DietInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Join(ErrInvalidInput, errors.New("food name is required"))
	}
	for _, v := range []float64{in.Calories, in.Protein, in.Carbs, in.Fat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Join(ErrInvalidInput, errors.New("macros must be finite"))
		}
	}
	return nil
}

// Validate rejects negative or non-finite durations.
func (in ActivityInput) Validate() error {
	if math.IsNaN(in.Duration) || math.IsInf(in.Duration, 0) || in.Duration < 0 {
		return errors.Join(ErrInvalidInput, errors.New("duration must be zero or more minutes"))
	}
	return nil
}

// NewDietEntry clamps negative macros to zero.
func NewDietEntry(id string, in DietInput) DietEntry {
	return DietEntry{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Calories: math.Max(0, in.Calories),
		Protein:  math.Max(0, in.Protein),
		Carbs:    math.Max(0, in.Carbs),
		Fat:      math.Max(0, in.Fat),
	}
}

// NewActivityEntry normalizes the type and intensity and computes the burn
// estimate once for weightKg.
func NewActivityEntry(id string, in ActivityInput, weightKg float64) ActivityEntry {
	activity := ParseActivityType(in.Type)
	intensity := ParseIntensity(in.Intensity)
	burned := ComputeCaloriesBurned(activity, intensity, in.Duration, weightKg)
	return ActivityEntry{
		ID:             id,
		Type:           activity,
		Duration:       in.Duration,
		Intensity:      intensity,
		CaloriesBurned: &burned,
		Benefits:       BenefitsFor(activity),
	}
}

// Burned returns the persisted burn estimate or computes it for older records.
func (e ActivityEntry) Burned() int {
	if e.CaloriesBurned != nil {
		return *e.CaloriesBurned
	}
	return ComputeCaloriesBurned(e.Type, e.Intensity, e.Duration, DefaultWeightKg)
}

// Goals holds the daily targets.
type Goals struct {
	CalorieGoal  float64 `json:"calorieGoal"`
	ProteinGoal  float64 `json:"proteinGoal"`
	ActivityGoal float64 `json:"activityGoal"`
}

// DefaultGoals are used whenever a record carries none.
func DefaultGoals() Goals {
	return Goals{
		CalorieGoal:  DefaultCalorieGoal,
		ProteinGoal:  DefaultProteinGoal,
		ActivityGoal: DefaultActivityGoal,
	}
}

// TrackingRecord is the full per-user state mirrored to the remote store.
type TrackingRecord struct {
	Diet      map[string][]DietEntry     `json:"diet"`
	Activity  map[string][]ActivityEntry `json:"activity"`
	Goals     *Goals                     `json:"goals"`
	GoalStory string                     `json:"goalStory"`
}

// NewTrackingRecord returns an empty record.
func NewTrackingRecord() TrackingRecord {
	return TrackingRecord{
		Diet:     map[string][]DietEntry{},
		Activity: map[string][]ActivityEntry{},
	}
}

// Normalize fills nil maps and drops date keys whose sequences are empty.
func (r *TrackingRecord) Normalize() {
	if r.Diet == nil {
		r.Diet = map[string][]DietEntry{}
	}
	if r.Activity == nil {
		r.Activity = map[string][]ActivityEntry{}
	}
	for date, entries := range r.Diet {
		if len(entries) == 0 {
			delete(r.Diet, date)
		}
	}
	for date, entries := range r.Activity {
		if len(entries) == 0 {
			delete(r.Activity, date)
		}
	}
}

// HasData reports whether the record is worth adopting over local state.
func (r TrackingRecord) HasData() bool {
	return len(r.Diet) > 0 ||
		len(r.Activity) > 0 ||
		r.Goals != nil ||
		strings.TrimSpace(r.GoalStory) != ""
}

// Clone deep-copies the record so snapshots can leave the store lock.
func (r TrackingRecord) Clone() TrackingRecord {
	out := TrackingRecord{
		Diet:      make(map[string][]DietEntry, len(r.Diet)),
		Activity:  make(map[string][]ActivityEntry, len(r.Activity)),
		GoalStory: r.GoalStory,
	}
	for date, entries := range r.Diet {
		out.Diet[date] = append([]DietEntry(nil), entries...)
	}
	for date, entries := range r.Activity {
		copied := make([]ActivityEntry, len(entries))
		for i, entry := range entries {
			if entry.CaloriesBurned != nil {
				burned := *entry.CaloriesBurned
				entry.CaloriesBurned = &burned
			}
			entry.Benefits = append([]string(nil), entry.Benefits...)
			copied[i] = entry
		}
		out.Activity[date] = copied
	}
	if r.Goals != nil {
		goals := *r.Goals
		out.Goals = &goals
	}
	return out
}

// EffectiveGoals returns the record's goals or the defaults.
func (r TrackingRecord) EffectiveGoals() Goals {
	if r.Goals == nil {
		return DefaultGoals()
	}
	return *r.Goals
}

// DietOn returns a copy of the diet entries for date.
func (r TrackingRecord) DietOn(date string) []DietEntry {
	return append([]DietEntry(nil), r.Diet[date]...)
}

// ActivityOn returns a copy of the activity entries for date.
func (r TrackingRecord) ActivityOn(date string) []ActivityEntry {
	return append([]ActivityEntry(nil), r.Activity[date]...)
}

// RemoveDiet drops entry id from date and prunes the key when it empties.
func (r *TrackingRecord) RemoveDiet(date, id string) bool {
	entries, ok := r.Diet[date]
	if !ok {
		return false
	}
	kept := entries[:0:0]
	for _, entry := range entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	removed := len(kept) != len(entries)
	if len(kept) == 0 {
		delete(r.Diet, date)
	} else {
		r.Diet[date] = kept
	}
	return removed
}

// RemoveActivity drops entry id from date and prunes the key when it empties.
func (r *TrackingRecord) RemoveActivity(date, id string) bool {
	entries, ok := r.Activity[date]
	if !ok {
		return false
	}
	kept := entries[:0:0]
	for _, entry := range entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	removed := len(kept) != len(entries)
	if len(kept) == 0 {
		delete(r.Activity, date)
	} else {
		r.Activity[date] = kept
	}
	return removed
}

// DietTotals sums macros across entries.
type DietTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// SumDiet totals the macros of entries.
func SumDiet(entries []DietEntry) DietTotals {
	var totals DietTotals
	for _, entry := range entries {
		totals.Calories += entry.Calories
		totals.Protein += entry.Protein
		totals.Carbs += entry.Carbs
		totals.Fat += entry.Fat
	}
	return totals
}

// SumActivityMinutes totals session durations.
func SumActivityMinutes(entries []ActivityEntry) float64 {
	var total float64
	for _, entry := range entries {
		total += entry.Duration
	}
	return total
}

// SumCaloriesBurned totals burn estimates, computing missing ones.
func SumCaloriesBurned(entries []ActivityEntry) int {
	total := 0
	for _, entry := range entries {
		total += entry.Burned()
	}
	return total
}

// RecentItem is one line in the recent-activity list.
type RecentItem struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// DaySummary is the dashboard view of one date.
type DaySummary struct {
	Date           string          `json:"date"`
	Goals          Goals           `json:"goals"`
	GoalStory      string          `json:"goalStory"`
	Diet           []DietEntry     `json:"diet"`
	Activity       []ActivityEntry `json:"activity"`
	Totals         DietTotals      `json:"totals"`
	ActiveMinutes  float64         `json:"activeMinutes"`
	CaloriesBurned int             `json:"caloriesBurned"`
	Recent         []RecentItem    `json:"recent"`
}

// Summarize builds the dashboard view for date.
func (r TrackingRecord) Summarize(date string) DaySummary {
	diet := r.DietOn(date)
	activity := r.ActivityOn(date)
	summary := DaySummary{
		Date:           date,
		Goals:          r.EffectiveGoals(),
		GoalStory:      r.GoalStory,
		Diet:           diet,
		Activity:       activity,
		Totals:         SumDiet(diet),
		ActiveMinutes:  SumActivityMinutes(activity),
		CaloriesBurned: SumCaloriesBurned(activity),
	}

	recent := make([]RecentItem, 0, len(diet)+len(activity))
	for _, entry := range diet {
		recent = append(recent, RecentItem{
			ID:   entry.ID,
			Kind: "diet",
			Text: entry.Name + " — " + formatNumber(entry.Calories) + " cal",
		})
	}
	for _, entry := range activity {
		recent = append(recent, RecentItem{
			ID:   entry.ID,
			Kind: "activity",
			Text: entry.Type.Label() + " — " + formatNumber(entry.Duration) + " min · " + formatNumber(float64(entry.Burned())) + " cal burned",
		})
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return CompareIDs(recent[i].ID, recent[j].ID) > 0
	})
	if len(recent) > 5 {
		recent = recent[:5]
	}
	summary.Recent = recent
	return summary
}
