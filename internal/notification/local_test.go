package notification

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingDriver struct {
	mu   sync.Mutex
	sent []reminder.Descriptor
}

func (d *recordingDriver) Channel() Channel { return Log }

func (d *recordingDriver) Send(ctx context.Context, desc reminder.Descriptor) error {
	d.mu.Lock()
	d.sent = append(d.sent, desc)
	d.mu.Unlock()
	return nil
}

type failingStore struct {
	*MemoryPendingStore
}

func (s failingStore) Put(ctx context.Context, batch []reminder.Descriptor) error {
	return errors.New("store down")
}

type deliveryLog struct {
	records []*Delivery
}

func (l *deliveryLog) Record(ctx context.Context, d *Delivery) error {
	l.records = append(l.records, d)
	return nil
}

var base = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

func newTestFacility(clock *fakeClock, store PendingStore, opts ...LocalOption) (*LocalFacility, *recordingDriver, *Listeners) {
	drivers := NewDriverRegistry()
	driver := &recordingDriver{}
	drivers.Register(driver)
	listeners := NewListeners(nil)
	opts = append([]LocalOption{WithClock(clock.Now)}, opts...)
	return NewLocalFacility(store, drivers, listeners, nil, opts...), driver, listeners
}

func TestLocalFacility_ScheduleFiresAndRearms(t *testing.T) {
	clock := &fakeClock{now: base}
	store := NewMemoryPendingStore()
	log := &deliveryLog{}
	f, driver, listeners := newTestFacility(clock, store, WithDeliveryRecorder(log))

	var received []int
	listeners.OnReceived(func(ctx context.Context, d ReceivedData) {
		received = append(received, d.Notification.ID)
	})

	ctx := context.Background()
	batch := []reminder.Descriptor{
		{ID: 1001, Category: reminder.CategoryMeal, TriggerAt: base.Add(time.Hour), Recurrence: reminder.RecurrenceDaily},
		{ID: reminder.AdHocBase | 1, Category: reminder.CategoryAdHoc, TriggerAt: base.Add(30 * time.Minute)},
	}
	if err := f.Schedule(ctx, batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := f.Tick(ctx); n != 0 {
		t.Fatalf("nothing is due yet, fired %d", n)
	}

	clock.Set(base.Add(time.Hour))
	if n := f.Tick(ctx); n != 2 {
		t.Fatalf("expected 2 fired, got %d", n)
	}
	if !reflect.DeepEqual(received, []int{reminder.AdHocBase | 1, 1001}) {
		t.Errorf("unexpected received order %v", received)
	}
	if len(driver.sent) != 2 || len(log.records) != 2 {
		t.Errorf("expected 2 sends and 2 records, got %d and %d", len(driver.sent), len(log.records))
	}

	pending, _ := f.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != 1001 {
		t.Fatalf("expected only the daily alert to be re-armed, got %v", reminder.IDs(pending))
	}
	if want := base.Add(time.Hour).AddDate(0, 0, 1); !pending[0].TriggerAt.Equal(want) {
		t.Errorf("re-armed at %v, want %v", pending[0].TriggerAt, want)
	}

	stored, _ := store.Load(ctx)
	if !reflect.DeepEqual(reminder.IDs(stored), []int{1001}) {
		t.Errorf("store out of sync: %v", reminder.IDs(stored))
	}
}

func TestLocalFacility_ScheduleIsAllOrNothing(t *testing.T) {
	clock := &fakeClock{now: base}
	ctx := context.Background()

	t.Run("duplicate ids", func(t *testing.T) {
		f, _, _ := newTestFacility(clock, nil)
		err := f.Schedule(ctx, []reminder.Descriptor{
			{ID: 1001, TriggerAt: base.Add(time.Hour)},
			{ID: 1001, TriggerAt: base.Add(2 * time.Hour)},
		})
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		if pending, _ := f.Pending(ctx); len(pending) != 0 {
			t.Errorf("failed batch left %d pending", len(pending))
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f, _, _ := newTestFacility(clock, failingStore{NewMemoryPendingStore()})
		err := f.Schedule(ctx, []reminder.Descriptor{{ID: 1001, TriggerAt: base.Add(time.Hour)}})
		if err == nil {
			t.Fatal("expected an error")
		}
		if pending, _ := f.Pending(ctx); len(pending) != 0 {
			t.Errorf("failed batch left %d pending", len(pending))
		}
	})
}

func TestLocalFacility_ScheduleReplacesSameID(t *testing.T) {
	clock := &fakeClock{now: base}
	f, _, _ := newTestFacility(clock, nil)
	ctx := context.Background()

	f.Schedule(ctx, []reminder.Descriptor{{ID: 1001, TriggerAt: base.Add(time.Hour)}})
	f.Schedule(ctx, []reminder.Descriptor{{ID: 1001, TriggerAt: base.Add(2 * time.Hour)}})

	pending, _ := f.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected one pending alert, got %d", len(pending))
	}
	if !pending[0].TriggerAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected the later schedule to win, got %v", pending[0].TriggerAt)
	}
}

func TestLocalFacility_Cancel(t *testing.T) {
	clock := &fakeClock{now: base}
	store := NewMemoryPendingStore()
	f, driver, _ := newTestFacility(clock, store)
	ctx := context.Background()

	f.Schedule(ctx, []reminder.Descriptor{
		{ID: 1001, TriggerAt: base.Add(time.Hour)},
		{ID: 2001, TriggerAt: base.Add(time.Hour)},
	})
	if err := f.Cancel(ctx, []int{1001}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Set(base.Add(time.Hour))
	f.Tick(ctx)
	if len(driver.sent) != 1 || driver.sent[0].ID != 2001 {
		t.Errorf("cancelled alert fired: %v", reminder.IDs(driver.sent))
	}
	if stored, _ := store.Load(ctx); len(stored) != 0 {
		t.Errorf("expected empty store, got %v", reminder.IDs(stored))
	}
}

func TestLocalFacility_Restore(t *testing.T) {
	clock := &fakeClock{now: base}
	store := NewMemoryPendingStore()
	ctx := context.Background()
	store.Put(ctx, []reminder.Descriptor{
		{ID: 1001, TriggerAt: base.Add(-50 * time.Hour), Recurrence: reminder.RecurrenceDaily},
		{ID: 3002, TriggerAt: base.Add(24 * time.Hour), Recurrence: reminder.RecurrenceWeekly},
		{ID: reminder.AdHocBase | 1, TriggerAt: base.Add(-time.Minute)},
	})

	f, driver, _ := newTestFacility(clock, store)
	if err := f.Restore(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ := f.Pending(ctx)
	if len(pending) != 3 {
		t.Fatalf("expected 3 restored, got %d", len(pending))
	}
	for _, p := range pending {
		if p.ID == 1001 && !p.TriggerAt.After(base) {
			t.Errorf("missed daily alert not rolled forward: %v", p.TriggerAt)
		}
	}

	f.Tick(ctx)
	if len(driver.sent) != 1 || driver.sent[0].ID != reminder.AdHocBase|1 {
		t.Errorf("expected the overdue one-off to fire, got %v", reminder.IDs(driver.sent))
	}
}

func TestLocalFacility_Permissions(t *testing.T) {
	f := NewLocalFacility(nil, nil, nil, nil, WithPermission(PermissionUnknown, PermissionDenied))
	ctx := context.Background()

	if s, _ := f.CheckPermissions(ctx); s != PermissionUnknown {
		t.Errorf("expected unknown, got %s", s)
	}
	if s, _ := f.RequestPermissions(ctx); s != PermissionDenied {
		t.Errorf("expected denied after request, got %s", s)
	}
}

func TestLocalFacility_RunStopsOnCancel(t *testing.T) {
	f := NewLocalFacility(nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
