package reminder

// Preferences is the notification-preference document served by the preferences
// service. The engine only reads it.
type Preferences struct {
	Enabled       bool                `json:"enabled"`
	MealReminders MealReminders       `json:"mealReminders"`
	StreakAlerts  StreakAlerts        `json:"streakAlerts"`
	DailySummary  SummarySetting      `json:"dailySummary"`
	WeeklySummary WeeklySummary       `json:"weeklySummary"`
	CBTReminders  *CBTReminders       `json:"cbtReminders,omitempty"`
	Content       map[Category]string `json:"content,omitempty"` // verbatim body overrides
}

type MealSetting struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

type MealReminders struct {
	Enabled   bool        `json:"enabled"`
	Breakfast MealSetting `json:"breakfast"`
	Lunch     MealSetting `json:"lunch"`
	Dinner    MealSetting `json:"dinner"`
	Snacks    MealSetting `json:"snacks"`
}

// Meal returns the setting for a meal type.
func (m MealReminders) Meal(meal MealType) MealSetting {
	switch meal {
	case Breakfast:
		return m.Breakfast
	case Lunch:
		return m.Lunch
	case Dinner:
		return m.Dinner
	case Snacks:
		return m.Snacks
	}
	return MealSetting{}
}

type StreakAlerts struct {
	Enabled     bool   `json:"enabled"`
	WarningTime string `json:"warningTime"`
}

type SummarySetting struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

type WeeklySummary struct {
	Enabled   bool   `json:"enabled"`
	Time      string `json:"time"`
	DayOfWeek int    `json:"dayOfWeek"` // 0 = Sunday
}

// MoodFrequency is the closed set of mood check-in variants.
type MoodFrequency string

const (
	FrequencyDaily          MoodFrequency = "daily"
	FrequencyTwiceDaily     MoodFrequency = "twice_daily"
	FrequencyMorningEvening MoodFrequency = "morning_evening"
	FrequencyThreeTimes     MoodFrequency = "3_times_daily"
	FrequencyCustom         MoodFrequency = "custom"
)

type MoodCheckIn struct {
	Enabled   bool          `json:"enabled"`
	Frequency MoodFrequency `json:"frequency"`
	Times     []string      `json:"times,omitempty"`
}

type TimedToggle struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time,omitempty"`
}

type ExerciseReminder struct {
	Enabled       bool   `json:"enabled"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

type CBTReminders struct {
	Enabled              bool             `json:"enabled"`
	MoodCheckIn          MoodCheckIn      `json:"moodCheckIn"`
	ThoughtPrompt        TimedToggle      `json:"thoughtPrompt"`
	ExerciseReminder     ExerciseReminder `json:"exerciseReminder"`
	EmotionalEatingAlert TimedToggle      `json:"emotionalEatingAlert"`
	CBTStreakWarning     TimedToggle      `json:"cbtStreakWarning"`
}
