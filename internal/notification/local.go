package notification

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

const maxSleepCap = 60 * time.Second

var ErrDuplicateID = errors.New("duplicate notification id in batch")

// alertHeap is a min-heap of pending descriptors ordered by TriggerAt, then ID.
type alertHeap []reminder.Descriptor

func (h alertHeap) Len() int { return len(h) }
func (h alertHeap) Less(i, j int) bool {
	if h[i].TriggerAt.Equal(h[j].TriggerAt) {
		return h[i].ID < h[j].ID
	}
	return h[i].TriggerAt.Before(h[j].TriggerAt)
}
func (h alertHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *alertHeap) Push(x any) {
	*h = append(*h, x.(reminder.Descriptor))
}

func (h *alertHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *alertHeap) remove(id int) bool {
	for i, d := range *h {
		if d.ID == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

type LocalOption func(*LocalFacility)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) LocalOption {
	return func(f *LocalFacility) {
		f.now = now
	}
}

// WithPermission sets the status reported before any request and the status a
// request resolves to.
func WithPermission(current, onRequest PermissionStatus) LocalOption {
	return func(f *LocalFacility) {
		f.permission = current
		f.onRequest = onRequest
	}
}

// WithDeliveryRecorder logs every delivery attempt.
func WithDeliveryRecorder(r DeliveryRecorder) LocalOption {
	return func(f *LocalFacility) {
		f.recorder = r
	}
}

// LocalFacility is an in-process notification facility. It keeps pending
// alerts in a min-heap, fires due ones through the registered drivers and
// re-arms daily and weekly recurrences. Every change is mirrored to the
// PendingStore before it becomes visible.
type LocalFacility struct {
	store     PendingStore
	drivers   *DriverRegistry
	listeners *Listeners
	recorder  DeliveryRecorder
	logger    *observability.Logger
	now       func() time.Time

	mu         sync.Mutex
	queue      alertHeap
	firing     map[int]bool
	permission PermissionStatus
	onRequest  PermissionStatus
	wake       chan struct{}
}

func NewLocalFacility(store PendingStore, drivers *DriverRegistry, listeners *Listeners, logger *observability.Logger, opts ...LocalOption) *LocalFacility {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if store == nil {
		store = NewMemoryPendingStore()
	}
	if drivers == nil {
		drivers = NewDriverRegistry()
	}
	if listeners == nil {
		listeners = NewListeners(logger)
	}
	f := &LocalFacility{
		store:      store,
		drivers:    drivers,
		listeners:  listeners,
		logger:     logger,
		now:        time.Now,
		firing:     make(map[int]bool),
		permission: PermissionGranted,
		onRequest:  PermissionGranted,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *LocalFacility) CheckPermissions(ctx context.Context) (PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

func (f *LocalFacility) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permission != PermissionGranted {
		f.permission = f.onRequest
	}
	return f.permission, nil
}

// Restore loads the persisted queue. Recurring alerts that were due while the
// process was down are rolled forward; overdue one-offs stay due and fire on
// the next tick.
func (f *LocalFacility) Restore(ctx context.Context) error {
	stored, err := f.store.Load(ctx)
	if err != nil {
		return err
	}
	now := f.now()

	f.mu.Lock()
	f.queue = f.queue[:0]
	for _, d := range stored {
		if d.Recurrence != reminder.RecurrenceNone {
			d = rollForward(d, now)
		}
		f.queue = append(f.queue, d)
	}
	heap.Init(&f.queue)
	PendingGauge.Set(float64(f.queue.Len()))
	f.mu.Unlock()

	f.logger.Info("Restored pending notifications", "count", len(stored))
	f.poke()
	return nil
}

func (f *LocalFacility) Schedule(ctx context.Context, batch []reminder.Descriptor) error {
	seen := make(map[int]bool, len(batch))
	for _, d := range batch {
		if seen[d.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, d.ID)
		}
		if d.TriggerAt.IsZero() {
			return fmt.Errorf("notification %d has no trigger time", d.ID)
		}
		seen[d.ID] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.store.Put(ctx, batch); err != nil {
		return err
	}
	for _, d := range batch {
		f.queue.remove(d.ID)
		heap.Push(&f.queue, d)
	}
	PendingGauge.Set(float64(f.queue.Len()))
	f.poke()
	return nil
}

func (f *LocalFacility) Pending(ctx context.Context) ([]reminder.Descriptor, error) {
	f.mu.Lock()
	out := make([]reminder.Descriptor, len(f.queue))
	copy(out, f.queue)
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *LocalFacility) Cancel(ctx context.Context, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.store.Delete(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		f.queue.remove(id)
		delete(f.firing, id)
	}
	PendingGauge.Set(float64(f.queue.Len()))
	f.poke()
	return nil
}

// Perform reports a user interaction with a fired notification to the
// action listeners.
func (f *LocalFacility) Perform(ctx context.Context, data ActionData) {
	f.listeners.EmitAction(ctx, data)
}

// Run fires due alerts until ctx is cancelled. The loop never sleeps longer
// than maxSleepCap so wall-clock jumps are picked up.
func (f *LocalFacility) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.wake:
		case <-timer.C:
			f.fireDue(ctx)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(f.sleepFor())
	}
}

func (f *LocalFacility) sleepFor() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queue.Len() == 0 {
		return maxSleepCap
	}
	dur := f.queue[0].TriggerAt.Sub(f.now())
	if dur > maxSleepCap {
		dur = maxSleepCap
	}
	if dur < 0 {
		dur = 0
	}
	return dur
}

// Tick fires every alert that is due at the facility clock. Run calls it from
// its timer; tests call it directly.
func (f *LocalFacility) Tick(ctx context.Context) int {
	return f.fireDue(ctx)
}

func (f *LocalFacility) fireDue(ctx context.Context) int {
	now := f.now()

	f.mu.Lock()
	var due []reminder.Descriptor
	for f.queue.Len() > 0 && !f.queue[0].TriggerAt.After(now) {
		d := heap.Pop(&f.queue).(reminder.Descriptor)
		f.firing[d.ID] = true
		due = append(due, d)
	}
	f.mu.Unlock()

	for _, d := range due {
		f.deliver(ctx, d, now)
		f.rearm(ctx, d, now)
	}
	return len(due)
}

func (f *LocalFacility) deliver(ctx context.Context, d reminder.Descriptor, firedAt time.Time) {
	for _, driver := range f.drivers.All() {
		delivery := &Delivery{
			NotificationID: d.ID,
			Category:       d.Category,
			Channel:        driver.Channel(),
			Title:          d.Title,
			Body:           d.Body,
			Status:         StatusDelivered,
			FiredAt:        firedAt,
		}
		if err := driver.Send(ctx, d); err != nil {
			delivery.Status = StatusFailed
			delivery.Error = err.Error()
			f.logger.Error("Failed to deliver notification", "id", d.ID, "channel", driver.Channel(), "error", err)
		}
		Deliveries.WithLabelValues(string(d.Category), string(driver.Channel()), string(delivery.Status)).Inc()

		if f.recorder != nil {
			if err := f.recorder.Record(ctx, delivery); err != nil {
				f.logger.Warn("Failed to record delivery", "id", d.ID, "error", err)
			}
		}
	}
	f.listeners.EmitReceived(ctx, ReceivedData{Notification: d, FiredAt: firedAt})
}

// rearm puts a recurring alert back on the queue unless it was cancelled or
// rescheduled while it was firing.
func (f *LocalFacility) rearm(ctx context.Context, d reminder.Descriptor, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.firing[d.ID] {
		return
	}
	delete(f.firing, d.ID)
	for _, q := range f.queue {
		if q.ID == d.ID {
			return
		}
	}

	next, ok := d.Next()
	if !ok {
		if err := f.store.Delete(ctx, []int{d.ID}); err != nil {
			f.logger.Warn("Failed to drop fired notification from store", "id", d.ID, "error", err)
		}
		PendingGauge.Set(float64(f.queue.Len()))
		return
	}
	next = rollForward(next, now)
	if err := f.store.Put(ctx, []reminder.Descriptor{next}); err != nil {
		f.logger.Warn("Failed to persist re-armed notification", "id", d.ID, "error", err)
	}
	heap.Push(&f.queue, next)
	PendingGauge.Set(float64(f.queue.Len()))
}

func (f *LocalFacility) poke() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func rollForward(d reminder.Descriptor, now time.Time) reminder.Descriptor {
	for !d.TriggerAt.After(now) {
		next, ok := d.Next()
		if !ok {
			return d
		}
		d = next
	}
	return d
}
