package domain

import (
	"math"
	"strconv"
	"strings"
)

// DefaultWeightKg is the body weight used when no profile weight is set.
const DefaultWeightKg = 70.0

// ActivityType is the closed set of loggable activities.
type ActivityType string

const (
	ActivityWalk   ActivityType = "walk"
	ActivityRun    ActivityType = "run"
	ActivityCycle  ActivityType = "cycle"
	ActivityGym    ActivityType = "gym"
	ActivitySports ActivityType = "sports"
	ActivityOther  ActivityType = "other"
)

// ParseActivityType maps free text onto the closed set, falling back to other.
func ParseActivityType(raw string) ActivityType {
	switch t := ActivityType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ActivityWalk, ActivityRun, ActivityCycle, ActivityGym, ActivitySports, ActivityOther:
		return t
	default:
		return ActivityOther
	}
}

// Known reports whether t is one of the closed set without falling back.
func (t ActivityType) Known() bool {
	return ParseActivityType(string(t)) == t
}

func (t ActivityType) Label() string {
	switch t {
	case ActivityWalk:
		return "Walking"
	case ActivityRun:
		return "Running"
	case ActivityCycle:
		return "Cycling"
	case ActivityGym:
		return "Gym / weights"
	case ActivitySports:
		return "Sports"
	case ActivityOther:
		return "Other"
	default:
		return string(t)
	}
}

// Intensity grades an activity session.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

// ParseIntensity maps free text onto the closed set, falling back to moderate.
func ParseIntensity(raw string) Intensity {
	switch i := Intensity(strings.ToLower(strings.TrimSpace(raw))); i {
	case IntensityLight, IntensityModerate, IntensityVigorous:
		return i
	default:
		return IntensityModerate
	}
}

type metRow struct {
	light, moderate, vigorous float64
}

var metByActivity = map[ActivityType]metRow{
	ActivityWalk:   {light: 2.5, moderate: 3.5, vigorous: 5.0},
	ActivityRun:    {light: 6.0, moderate: 9.0, vigorous: 12.0},
	ActivityCycle:  {light: 4.0, moderate: 8.0, vigorous: 12.0},
	ActivityGym:    {light: 3.0, moderate: 5.0, vigorous: 6.0},
	ActivitySports: {light: 5.0, moderate: 7.0, vigorous: 10.0},
	ActivityOther:  {light: 3.0, moderate: 5.0, vigorous: 7.0},
}

var benefitsByActivity = map[ActivityType][]string{
	ActivityWalk:   {"Heart health", "Mood", "Steps"},
	ActivityRun:    {"Cardio", "Endurance", "Calorie burn"},
	ActivityCycle:  {"Leg strength", "Cardio", "Low impact"},
	ActivityGym:    {"Strength", "Bone density", "Muscle"},
	ActivitySports: {"Full body", "Coordination", "Fun"},
	ActivityOther:  {"General fitness", "Movement"},
}

// MET returns the metabolic equivalent for an activity and intensity.
func MET(activity ActivityType, intensity Intensity) float64 {
	row, ok := metByActivity[activity]
	if !ok {
		row = metByActivity[ActivityOther]
	}
	switch intensity {
	case IntensityLight:
		return row.light
	case IntensityVigorous:
		return row.vigorous
	default:
		return row.moderate
	}
}

// ComputeCaloriesBurned estimates kcal as MET × weight × hours, rounded.
func ComputeCaloriesBurned(activity ActivityType, intensity Intensity, minutes float64, weightKg float64) int {
	if weightKg <= 0 {
		weightKg = DefaultWeightKg
	}
	if minutes < 0 {
		minutes = 0
	}
	return int(math.Round(MET(activity, intensity) * weightKg * (minutes / 60)))
}

// BenefitsFor returns the benefit tags shown for an activity.
func BenefitsFor(activity ActivityType) []string {
	benefits, ok := benefitsByActivity[activity]
	if !ok {
		benefits = benefitsByActivity[ActivityOther]
	}
	return append([]string(nil), benefits...)
}

// CompareIDs orders entry ids numerically, falling back to string order for
// ids that are not decimal tokens.
func CompareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
