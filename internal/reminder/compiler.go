package reminder

import (
	"strconv"
	"time"
)

// Fixed anchors for the morning/evening mood check-in. They do not come from
// the per-slot custom times.
const (
	MorningCheckIn = "09:00"
	EveningCheckIn = "20:00"
)

// Compile turns a preference document into the full set of alerts that should
// be pending at now. It is pure: same inputs, same output, no side effects.
// Categories with a missing or malformed time are skipped individually.
func Compile(prefs Preferences, now time.Time) []Descriptor {
	if !prefs.Enabled {
		return []Descriptor{}
	}

	c := &compilation{prefs: prefs, now: now}

	if prefs.MealReminders.Enabled {
		for i, meal := range MealTypes {
			setting := prefs.MealReminders.Meal(meal)
			if !setting.Enabled {
				continue
			}
			c.daily(CategoryMeal, i, setting.Time, templateData{Meal: string(meal)}, map[string]string{"meal": string(meal)})
		}
	}

	if prefs.StreakAlerts.Enabled {
		c.daily(CategoryStreakWarning, 0, prefs.StreakAlerts.WarningTime, templateData{}, nil)
	}

	if prefs.DailySummary.Enabled {
		c.daily(CategoryDailySummary, 0, prefs.DailySummary.Time, templateData{}, nil)
	}

	if prefs.WeeklySummary.Enabled {
		c.weekly(CategoryWeeklySummary, prefs.WeeklySummary.Time, time.Weekday(prefs.WeeklySummary.DayOfWeek))
	}

	if cbt := prefs.CBTReminders; cbt != nil && cbt.Enabled {
		if cbt.MoodCheckIn.Enabled {
			for slot, t := range moodSlots(cbt.MoodCheckIn) {
				c.daily(CategoryMoodCheckIn, slot, t, templateData{Slot: slot}, map[string]string{"slot": strconv.Itoa(slot)})
			}
		}
		if cbt.ThoughtPrompt.Enabled {
			c.daily(CategoryThoughtPrompt, 0, cbt.ThoughtPrompt.Time, templateData{}, nil)
		}
		if cbt.ExerciseReminder.Enabled {
			c.daily(CategoryExerciseReminder, 0, cbt.ExerciseReminder.PreferredTime, templateData{}, nil)
		}
		if cbt.EmotionalEatingAlert.Enabled {
			c.daily(CategoryEmotionalEatingAlert, 0, cbt.EmotionalEatingAlert.Time, templateData{}, nil)
		}
		if cbt.CBTStreakWarning.Enabled {
			c.daily(CategoryCBTStreakWarning, 0, cbt.CBTStreakWarning.Time, templateData{}, nil)
		}
	}

	return c.out
}

// moodSlots returns the wall-clock time of each mood check-in slot in slot
// order. Extra times are dropped, missing ones leave their slot empty.
func moodSlots(m MoodCheckIn) []string {
	switch m.Frequency {
	case FrequencyMorningEvening:
		return []string{MorningCheckIn, EveningCheckIn}
	case FrequencyDaily:
		if len(m.Times) > 0 {
			return m.Times[:1]
		}
		return []string{MorningCheckIn}
	case FrequencyTwiceDaily:
		return truncate(m.Times, 2)
	case FrequencyThreeTimes, FrequencyCustom:
		return truncate(m.Times, MoodCheckInSlots)
	}
	return nil
}

func truncate(times []string, n int) []string {
	if len(times) > n {
		return times[:n]
	}
	return times
}

type compilation struct {
	prefs Preferences
	now   time.Time
	out   []Descriptor
}

func (c *compilation) daily(category Category, slot int, hhmm string, data templateData, payload map[string]string) {
	if hhmm == "" {
		return
	}
	at, err := NextOccurrence(hhmm, c.now)
	if err != nil {
		return
	}
	data.Time = hhmm
	c.emit(category, slot, at, RecurrenceDaily, data, payload)
}

func (c *compilation) weekly(category Category, hhmm string, weekday time.Weekday) {
	if hhmm == "" {
		return
	}
	at, err := NextWeekday(hhmm, weekday, c.now)
	if err != nil {
		return
	}
	c.emit(category, 0, at, RecurrenceWeekly, templateData{Time: hhmm}, map[string]string{"dayOfWeek": strconv.Itoa(int(weekday))})
}

func (c *compilation) emit(category Category, slot int, at time.Time, rec Recurrence, data templateData, payload map[string]string) {
	id, err := IDFor(category, slot)
	if err != nil {
		return
	}
	content := renderContent(category, data)
	if body, ok := c.prefs.Content[category]; ok && body != "" {
		content.Body = body
	}

	p := map[string]string{"category": string(category)}
	for k, v := range payload {
		p[k] = v
	}

	c.out = append(c.out, Descriptor{
		ID:         id,
		Category:   category,
		Title:      content.Title,
		Body:       content.Body,
		TriggerAt:  at,
		Recurrence: rec,
		Payload:    p,
	})
}
