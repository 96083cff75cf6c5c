package reminder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTime = errors.New("invalid wall-clock time")

// WallClock is an "HH:MM" local time with no date or zone.
type WallClock struct {
	Hour   int
	Minute int
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// ParseWallClock parses a 24h "HH:MM" string.
func ParseWallClock(s string) (WallClock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return WallClock{}, fmt.Errorf("%w: hour in %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return WallClock{}, fmt.Errorf("%w: minute in %q", ErrInvalidTime, s)
	}
	return WallClock{Hour: hour, Minute: minute}, nil
}

// On returns the instant at this wall-clock time on the calendar day of t,
// in t's location.
func (w WallClock) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), w.Hour, w.Minute, 0, 0, t.Location())
}

// NextOccurrence returns the next instant strictly after now at the given
// wall-clock time. A time equal to now counts as already passed.
//
// No zone conversion happens: the calendar arithmetic runs in now's location,
// so across a DST change the real delay can be an hour shorter or longer.
func NextOccurrence(hhmm string, now time.Time) (time.Time, error) {
	wc, err := ParseWallClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	next := wc.On(now)
	if !next.After(now) {
		next = wc.On(now.AddDate(0, 0, 1))
	}
	return next, nil
}

// NextWeekday returns the next instant strictly after now that falls on
// weekday at the given wall-clock time.
func NextWeekday(hhmm string, weekday time.Weekday, now time.Time) (time.Time, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return time.Time{}, fmt.Errorf("%w: weekday %d", ErrInvalidTime, weekday)
	}
	wc, err := ParseWallClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next := wc.On(now.AddDate(0, 0, days))
	if !next.After(now) {
		next = wc.On(now.AddDate(0, 0, days+7))
	}
	return next, nil
}
