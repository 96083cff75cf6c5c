package reminder

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, layout string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", layout, time.UTC)
	if err != nil {
		t.Fatalf("bad fixture %q: %v", layout, err)
	}
	return ts
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		time string
		now  string
		want string
	}{
		{name: "later today", time: "08:00", now: "2026-03-10 07:00", want: "2026-03-10 08:00"},
		{name: "already passed", time: "08:00", now: "2026-03-10 09:00", want: "2026-03-11 08:00"},
		{name: "exact equality rolls over", time: "08:00", now: "2026-03-10 08:00", want: "2026-03-11 08:00"},
		{name: "one minute ahead", time: "23:59", now: "2026-03-10 23:58", want: "2026-03-10 23:59"},
		{name: "midnight", time: "00:00", now: "2026-03-10 12:00", want: "2026-03-11 00:00"},
		{name: "end of month", time: "06:30", now: "2026-01-31 22:00", want: "2026-02-01 06:30"},
		{name: "end of year", time: "06:30", now: "2026-12-31 22:00", want: "2027-01-01 06:30"},
		{name: "single digit hour", time: "7:05", now: "2026-03-10 07:00", want: "2026-03-10 07:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := at(t, tt.now)
			got, err := NextOccurrence(tt.time, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := at(t, tt.want); !got.Equal(want) {
				t.Errorf("expected %v, got %v", want, got)
			}
			if !got.After(now) {
				t.Errorf("expected %v to be strictly after %v", got, now)
			}
		})
	}
}

func TestNextOccurrence_SecondsPastMinute(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 30, 0, time.UTC)
	got, err := NextOccurrence("08:00", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNextOccurrence_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2026, 3, 10, 22, 0, 0, 0, loc)
	got, err := NextOccurrence("21:00", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location() != loc {
		t.Errorf("expected location %v, got %v", loc, got.Location())
	}
	if got.Day() != 11 || got.Hour() != 21 {
		t.Errorf("expected tomorrow 21:00 wall-clock, got %v", got)
	}
}

func TestNextOccurrence_Invalid(t *testing.T) {
	for _, in := range []string{"", "8", "24:00", "12:60", "ab:cd", "12:5", "-1:00"} {
		if _, err := NextOccurrence(in, time.Now()); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("expected ErrInvalidTime for %q, got %v", in, err)
		}
	}
}

func TestNextWeekday(t *testing.T) {
	// 2026-03-10 is a Tuesday.
	tests := []struct {
		name    string
		weekday time.Weekday
		time    string
		now     string
		want    string
	}{
		{name: "later this week", weekday: time.Sunday, time: "18:00", now: "2026-03-10 09:00", want: "2026-03-15 18:00"},
		{name: "same day later", weekday: time.Tuesday, time: "18:00", now: "2026-03-10 09:00", want: "2026-03-10 18:00"},
		{name: "same day passed", weekday: time.Tuesday, time: "08:00", now: "2026-03-10 09:00", want: "2026-03-17 08:00"},
		{name: "same day exact", weekday: time.Tuesday, time: "09:00", now: "2026-03-10 09:00", want: "2026-03-17 09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextWeekday(tt.time, tt.weekday, at(t, tt.now))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := at(t, tt.want); !got.Equal(want) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}

	if _, err := NextWeekday("09:00", time.Weekday(9), time.Now()); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime for weekday 9, got %v", err)
	}
}
