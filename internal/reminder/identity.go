package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUnknownCategory = errors.New("unknown reminder category")
	ErrSlotOutOfRange  = errors.New("reminder slot out of range")
)

// AdHocBase marks the ad-hoc id space. Every canonical id is below it and every
// ad-hoc id has this bit set, so the two spaces never overlap.
const AdHocBase = 1 << 30

// MoodCheckInSlots is the number of reserved mood check-in ids.
const MoodCheckInSlots = 3

// The table below is persisted on devices through scheduled alerts. Values
// must never be changed or reused, otherwise alerts from an older build are
// orphaned.
var canonicalIDs = map[Category][]int{
	CategoryMeal:                 {1001, 1002, 1003, 1004}, // breakfast, lunch, dinner, snacks
	CategoryStreakWarning:        {2001},
	CategoryDailySummary:         {3001},
	CategoryWeeklySummary:        {3002},
	CategoryMoodCheckIn:          {4001, 4002, 4003},
	CategoryThoughtPrompt:        {4010},
	CategoryExerciseReminder:     {4011},
	CategoryEmotionalEatingAlert: {4012},
	CategoryCBTStreakWarning:     {4013},
}

// IDFor maps (category, slot) to its stable scheduling id. Single-slot
// categories only accept index 0.
func IDFor(category Category, index int) (int, error) {
	ids, ok := canonicalIDs[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if index < 0 || index >= len(ids) {
		return 0, fmt.Errorf("%w: %s[%d]", ErrSlotOutOfRange, category, index)
	}
	return ids[index], nil
}

// MealID returns the id reserved for a meal type.
func MealID(meal MealType) (int, error) {
	for i, m := range MealTypes {
		if m == meal {
			return IDFor(CategoryMeal, i)
		}
	}
	return 0, fmt.Errorf("%w: meal %s", ErrUnknownCategory, meal)
}

// CanonicalIDs lists every reserved id.
func CanonicalIDs() []int {
	var ids []int
	for _, slots := range canonicalIDs {
		ids = append(ids, slots...)
	}
	return ids
}

// IsAdHoc reports whether id belongs to the ad-hoc space.
func IsAdHoc(id int) bool {
	return id&AdHocBase != 0
}

// AdHocIDs hands out identifiers for one-off notifications.
type AdHocIDs interface {
	NextID(ctx context.Context) (int, error)
}

func adHocID(seq int64) int {
	return AdHocBase | int(seq%AdHocBase)
}

// SequenceIDs is an in-process AdHocIDs.
type SequenceIDs struct {
	seq atomic.Int64
}

func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

func (s *SequenceIDs) NextID(ctx context.Context) (int, error) {
	return adHocID(s.seq.Add(1)), nil
}

// RedisAdHocIDs keeps the ad-hoc sequence in Redis so ids stay unique across
// restarts.
type RedisAdHocIDs struct {
	rdb *redis.Client
	key string
}

func NewRedisAdHocIDs(rdb *redis.Client, key string) *RedisAdHocIDs {
	if key == "" {
		key = "reminders:adhoc:seq"
	}
	return &RedisAdHocIDs{rdb: rdb, key: key}
}

func (r *RedisAdHocIDs) NextID(ctx context.Context) (int, error) {
	seq, err := r.rdb.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate ad-hoc id: %w", err)
	}
	return adHocID(seq), nil
}
