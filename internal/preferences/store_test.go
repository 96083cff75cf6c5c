package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

type MockSource struct {
	GetFunc    func(ctx context.Context) (reminder.Preferences, error)
	UpdateFunc func(ctx context.Context, patch Patch) (reminder.Preferences, error)
}

func (m *MockSource) Get(ctx context.Context) (reminder.Preferences, error) {
	return m.GetFunc(ctx)
}

func (m *MockSource) Update(ctx context.Context, patch Patch) (reminder.Preferences, error) {
	return m.UpdateFunc(ctx, patch)
}

func TestStore_LoadFetchesOnce(t *testing.T) {
	calls := 0
	store := NewStore(&MockSource{
		GetFunc: func(ctx context.Context) (reminder.Preferences, error) {
			calls++
			return reminder.Preferences{Enabled: true}, nil
		},
	})

	for i := 0; i < 3; i++ {
		prefs, err := store.Load(context.Background())
		if err != nil || !prefs.Enabled {
			t.Fatalf("unexpected result %+v, %v", prefs, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch per session, got %d", calls)
	}

	if _, err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected Refresh to fetch again, got %d calls", calls)
	}
}

func TestStore_LoadFailureIsRetried(t *testing.T) {
	fail := true
	store := NewStore(&MockSource{
		GetFunc: func(ctx context.Context) (reminder.Preferences, error) {
			if fail {
				return reminder.Preferences{}, errors.New("offline")
			}
			return reminder.Preferences{Enabled: true}, nil
		},
	})

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := store.Cached(); ok {
		t.Error("a failed fetch must not populate the cache")
	}

	fail = false
	if prefs, err := store.Load(context.Background()); err != nil || !prefs.Enabled {
		t.Errorf("expected retry to succeed, got %+v, %v", prefs, err)
	}
}

func TestStore_UpdateCachesEcho(t *testing.T) {
	store := NewStore(&MockSource{
		GetFunc: func(ctx context.Context) (reminder.Preferences, error) {
			return reminder.Preferences{Enabled: true}, nil
		},
		UpdateFunc: func(ctx context.Context, patch Patch) (reminder.Preferences, error) {
			if patch["enabled"] == false {
				return reminder.Preferences{Enabled: false, StreakAlerts: reminder.StreakAlerts{Enabled: true}}, nil
			}
			return reminder.Preferences{}, errors.New("rejected")
		},
	})
	ctx := context.Background()
	store.Load(ctx)

	if _, err := store.Update(ctx, Patch{"bogus": 1}); err == nil {
		t.Fatal("expected an error")
	}
	if prefs, _ := store.Cached(); !prefs.Enabled {
		t.Error("failed update must leave the cache untouched")
	}

	prefs, err := store.Update(ctx, Patch{"enabled": false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cached, _ := store.Cached()
	if cached.Enabled || !cached.StreakAlerts.Enabled || prefs.Enabled {
		t.Errorf("expected the authoritative echo to be cached, got %+v", cached)
	}
}
