package reminder

import (
	"time"
)

type Category string

const (
	CategoryMeal                 Category = "meal"
	CategoryStreakWarning        Category = "streakWarning"
	CategoryDailySummary         Category = "dailySummary"
	CategoryWeeklySummary        Category = "weeklySummary"
	CategoryMoodCheckIn          Category = "moodCheckIn"
	CategoryThoughtPrompt        Category = "thoughtPrompt"
	CategoryExerciseReminder     Category = "exerciseReminder"
	CategoryEmotionalEatingAlert Category = "emotionalEatingAlert"
	CategoryCBTStreakWarning     Category = "cbtStreakWarning"
	CategoryAdHoc                Category = "adHoc"
)

type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snacks    MealType = "snacks"
)

// MealTypes is the declaration order used by the compiler and the id table.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snacks}

type Recurrence string

const (
	RecurrenceNone   Recurrence = ""
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Descriptor is one alert as handed to the notification facility.
type Descriptor struct {
	ID         int               `json:"id"`
	Category   Category          `json:"category"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	TriggerAt  time.Time         `json:"triggerAt"`
	Recurrence Recurrence        `json:"recurrence,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Next returns the descriptor re-armed for its following occurrence.
// One-off descriptors return false.
func (d Descriptor) Next() (Descriptor, bool) {
	switch d.Recurrence {
	case RecurrenceDaily:
		d.TriggerAt = d.TriggerAt.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		d.TriggerAt = d.TriggerAt.AddDate(0, 0, 7)
	default:
		return d, false
	}
	return d, true
}

// IDs returns the ids of the descriptors in order.
func IDs(descriptors []Descriptor) []int {
	ids := make([]int, 0, len(descriptors))
	for _, d := range descriptors {
		ids = append(ids, d.ID)
	}
	return ids
}
