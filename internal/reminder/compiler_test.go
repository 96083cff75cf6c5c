package reminder

import (
	"reflect"
	"testing"
	"time"
)

func fullPreferences() Preferences {
	return Preferences{
		Enabled: true,
		MealReminders: MealReminders{
			Enabled:   true,
			Breakfast: MealSetting{Enabled: true, Time: "08:00"},
			Lunch:     MealSetting{Enabled: true, Time: "12:30"},
			Dinner:    MealSetting{Enabled: true, Time: "19:00"},
			Snacks:    MealSetting{Enabled: true, Time: "16:00"},
		},
		StreakAlerts:  StreakAlerts{Enabled: true, WarningTime: "21:00"},
		DailySummary:  SummarySetting{Enabled: true, Time: "22:00"},
		WeeklySummary: WeeklySummary{Enabled: true, Time: "18:00", DayOfWeek: 0},
		CBTReminders: &CBTReminders{
			Enabled:              true,
			MoodCheckIn:          MoodCheckIn{Enabled: true, Frequency: FrequencyThreeTimes, Times: []string{"09:00", "13:00", "19:00"}},
			ThoughtPrompt:        TimedToggle{Enabled: true, Time: "20:00"},
			ExerciseReminder:     ExerciseReminder{Enabled: true, PreferredTime: "10:00"},
			EmotionalEatingAlert: TimedToggle{Enabled: true, Time: "15:00"},
			CBTStreakWarning:     TimedToggle{Enabled: true, Time: "21:30"},
		},
	}
}

func TestCompile_Disabled(t *testing.T) {
	prefs := fullPreferences()
	prefs.Enabled = false

	got := Compile(prefs, time.Now())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil schedule, got %v", got)
	}
}

func TestCompile_ScenarioA_FutureToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	prefs := Preferences{
		Enabled: true,
		MealReminders: MealReminders{
			Enabled:   true,
			Breakfast: MealSetting{Enabled: true, Time: "08:00"},
		},
	}

	got := Compile(prefs, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	d := got[0]
	if d.ID != 1001 {
		t.Errorf("expected breakfast id 1001, got %d", d.ID)
	}
	if want := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC); !d.TriggerAt.Equal(want) {
		t.Errorf("expected trigger %v, got %v", want, d.TriggerAt)
	}
	if d.Recurrence != RecurrenceDaily {
		t.Errorf("expected daily recurrence, got %q", d.Recurrence)
	}
	if d.Title != "Time for breakfast" {
		t.Errorf("unexpected title %q", d.Title)
	}
	if d.Payload["meal"] != "breakfast" {
		t.Errorf("expected meal payload, got %v", d.Payload)
	}
}

func TestCompile_ScenarioB_PassedToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	prefs := Preferences{
		Enabled: true,
		MealReminders: MealReminders{
			Enabled:   true,
			Breakfast: MealSetting{Enabled: true, Time: "08:00"},
		},
	}

	got := Compile(prefs, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	if want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC); !got[0].TriggerAt.Equal(want) {
		t.Errorf("expected trigger %v, got %v", want, got[0].TriggerAt)
	}
}

func TestCompile_ScenarioC_ThreeMoodSlots(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	prefs := fullPreferences()

	var mood []Descriptor
	mealIDs := make(map[int]bool)
	for _, d := range Compile(prefs, now) {
		switch d.Category {
		case CategoryMoodCheckIn:
			mood = append(mood, d)
		case CategoryMeal:
			mealIDs[d.ID] = true
		}
	}

	if len(mood) != 3 {
		t.Fatalf("expected 3 mood check-ins, got %d", len(mood))
	}
	want := []int{4001, 4002, 4003}
	for i, d := range mood {
		if d.ID != want[i] {
			t.Errorf("slot %d: expected id %d, got %d", i, want[i], d.ID)
		}
		if mealIDs[d.ID] {
			t.Errorf("mood id %d collides with a meal id", d.ID)
		}
	}
}

func TestCompile_MoodFrequencies(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mood      MoodCheckIn
		wantIDs   []int
		wantHours []int
	}{
		{
			name:      "morning evening ignores custom times",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyMorningEvening, Times: []string{"11:00", "12:00", "13:00"}},
			wantIDs:   []int{4001, 4002},
			wantHours: []int{9, 20},
		},
		{
			name:      "three times truncates extras",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyThreeTimes, Times: []string{"08:00", "12:00", "16:00", "20:00"}},
			wantIDs:   []int{4001, 4002, 4003},
			wantHours: []int{8, 12, 16},
		},
		{
			name:      "three times with short list",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyThreeTimes, Times: []string{"08:00"}},
			wantIDs:   []int{4001},
			wantHours: []int{8},
		},
		{
			name:    "three times with no list",
			mood:    MoodCheckIn{Enabled: true, Frequency: FrequencyThreeTimes},
			wantIDs: nil,
		},
		{
			name:      "daily defaults to morning",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyDaily},
			wantIDs:   []int{4001},
			wantHours: []int{9},
		},
		{
			name:      "twice daily",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyTwiceDaily, Times: []string{"10:00", "18:00", "22:00"}},
			wantIDs:   []int{4001, 4002},
			wantHours: []int{10, 18},
		},
		{
			name:      "malformed slot skipped",
			mood:      MoodCheckIn{Enabled: true, Frequency: FrequencyCustom, Times: []string{"10:00", "bogus", "22:00"}},
			wantIDs:   []int{4001, 4003},
			wantHours: []int{10, 22},
		},
		{
			name:    "unknown frequency",
			mood:    MoodCheckIn{Enabled: true, Frequency: "hourly", Times: []string{"10:00"}},
			wantIDs: nil,
		},
		{
			name:    "disabled",
			mood:    MoodCheckIn{Enabled: false, Frequency: FrequencyMorningEvening},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := Preferences{Enabled: true, CBTReminders: &CBTReminders{Enabled: true, MoodCheckIn: tt.mood}}
			got := Compile(prefs, now)

			var ids, hours []int
			for _, d := range got {
				ids = append(ids, d.ID)
				hours = append(hours, d.TriggerAt.Hour())
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("expected ids %v, got %v", tt.wantIDs, ids)
			}
			if tt.wantHours != nil && !reflect.DeepEqual(hours, tt.wantHours) {
				t.Errorf("expected hours %v, got %v", tt.wantHours, hours)
			}
		})
	}
}

func TestCompile_MissingTimeSkipsOnlyThatCategory(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	prefs := Preferences{
		Enabled: true,
		CBTReminders: &CBTReminders{
			Enabled:          true,
			ThoughtPrompt:    TimedToggle{Enabled: true},
			ExerciseReminder: ExerciseReminder{Enabled: true, PreferredTime: "10:00"},
		},
	}

	got := Compile(prefs, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	if got[0].Category != CategoryExerciseReminder {
		t.Errorf("expected exercise reminder, got %s", got[0].Category)
	}
}

func TestCompile_MealMasterSwitch(t *testing.T) {
	prefs := fullPreferences()
	prefs.MealReminders.Enabled = false

	for _, d := range Compile(prefs, time.Now()) {
		if d.Category == CategoryMeal {
			t.Fatalf("meal reminder %d emitted with meal reminders disabled", d.ID)
		}
	}
}

func TestCompile_CBTMasterSwitch(t *testing.T) {
	prefs := fullPreferences()
	prefs.CBTReminders.Enabled = false

	got := Compile(prefs, time.Now())
	for _, d := range got {
		if d.ID >= 4000 {
			t.Fatalf("cbt reminder %d emitted with cbt reminders disabled", d.ID)
		}
	}
	prefs.CBTReminders = nil
	if len(Compile(prefs, time.Now())) != len(got) {
		t.Error("nil cbt block should behave like a disabled one")
	}
}

func TestCompile_StableOrderAndUniqueIDs(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	got := Compile(fullPreferences(), now)

	want := []int{1001, 1002, 1003, 1004, 2001, 3001, 3002, 4001, 4002, 4003, 4010, 4011, 4012, 4013}
	if ids := IDs(got); !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected order %v, got %v", want, ids)
	}

	seen := make(map[int]bool)
	for _, d := range got {
		if seen[d.ID] {
			t.Errorf("duplicate id %d", d.ID)
		}
		seen[d.ID] = true
		if !d.TriggerAt.After(now) {
			t.Errorf("id %d triggers at %v, not after %v", d.ID, d.TriggerAt, now)
		}
	}
}

func TestCompile_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 45, 0, 0, time.UTC)
	prefs := fullPreferences()

	first := Compile(prefs, now)
	second := Compile(prefs, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical output for identical inputs")
	}
}

func TestCompile_WeeklySummary(t *testing.T) {
	// Tuesday.
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	prefs := Preferences{
		Enabled:       true,
		WeeklySummary: WeeklySummary{Enabled: true, Time: "18:00", DayOfWeek: int(time.Friday)},
	}

	got := Compile(prefs, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	if got[0].Recurrence != RecurrenceWeekly {
		t.Errorf("expected weekly recurrence, got %q", got[0].Recurrence)
	}
	if want := time.Date(2026, 3, 13, 18, 0, 0, 0, time.UTC); !got[0].TriggerAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, got[0].TriggerAt)
	}
}

func TestCompile_ContentOverride(t *testing.T) {
	prefs := Preferences{
		Enabled:      true,
		StreakAlerts: StreakAlerts{Enabled: true, WarningTime: "21:00"},
		Content:      map[Category]string{CategoryStreakWarning: "You are on a 12 day streak!"},
	}

	got := Compile(prefs, time.Now())
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	if got[0].Body != "You are on a 12 day streak!" {
		t.Errorf("expected verbatim body, got %q", got[0].Body)
	}
	if got[0].Title != Templates[CategoryStreakWarning].Title {
		t.Errorf("expected canned title, got %q", got[0].Title)
	}
}

func TestDescriptorNext(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	d := Descriptor{ID: 1001, TriggerAt: base, Recurrence: RecurrenceDaily}
	next, ok := d.Next()
	if !ok || !next.TriggerAt.Equal(base.AddDate(0, 0, 1)) {
		t.Errorf("daily: got %v ok=%v", next.TriggerAt, ok)
	}

	d.Recurrence = RecurrenceWeekly
	next, ok = d.Next()
	if !ok || !next.TriggerAt.Equal(base.AddDate(0, 0, 7)) {
		t.Errorf("weekly: got %v ok=%v", next.TriggerAt, ok)
	}

	d.Recurrence = RecurrenceNone
	if _, ok := d.Next(); ok {
		t.Error("one-off descriptor should not re-arm")
	}
}
