package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapliy/reminder-engine/internal/notification"
	"github.com/sapliy/reminder-engine/internal/preferences"
	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrPreferenceFetch  = errors.New("failed to fetch notification preferences")
	ErrPreferenceUpdate = errors.New("failed to update notification preferences")
)

// Gate is satisfied by *notification.PermissionGate.
type Gate interface {
	Check(ctx context.Context) notification.PermissionStatus
	Request(ctx context.Context) notification.PermissionStatus
}

// Dispatcher is satisfied by *notification.Dispatcher.
type Dispatcher interface {
	ScheduleAll(ctx context.Context, descriptors []reminder.Descriptor) error
	CancelAll(ctx context.Context) error
	Purge(ctx context.Context) error
}

// PreferenceStore is satisfied by *preferences.Store.
type PreferenceStore interface {
	Load(ctx context.Context) (reminder.Preferences, error)
	Update(ctx context.Context, patch preferences.Patch) (reminder.Preferences, error)
	Set(prefs reminder.Preferences)
}

// EventSink is satisfied by *notification.EventPublisher.
type EventSink interface {
	Publish(ctx context.Context, eventType notification.EventType, data interface{}) error
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithCompiler swaps the schedule compiler, mostly to observe calls in tests.
func WithCompiler(compile func(reminder.Preferences, time.Time) []reminder.Descriptor) Option {
	return func(c *Controller) {
		c.compile = compile
	}
}

func WithEventSink(sink EventSink) Option {
	return func(c *Controller) {
		c.events = sink
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// Controller owns the reminder schedule for one session. It checks
// permission, loads preferences once and then replaces the whole schedule on
// every acknowledged change. Passes never overlap: a request that arrives
// while a pass is running takes the single pending slot, replacing whatever
// was queued before it.
type Controller struct {
	gate       Gate
	store      PreferenceStore
	dispatcher Dispatcher
	events     EventSink
	logger     *observability.Logger
	tracer     trace.Tracer
	now        func() time.Time
	compile    func(reminder.Preferences, time.Time) []reminder.Descriptor

	mu               sync.Mutex
	state            State
	permission       notification.PermissionStatus
	lastErr          error
	lastReconciledAt time.Time
	scheduled        []int
	passes           int
	running          bool
	pending          *reminder.Preferences
}

func NewController(gate Gate, store PreferenceStore, dispatcher Dispatcher, logger *observability.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	c := &Controller{
		gate:       gate,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer("github.com/sapliy/reminder-engine/internal/lifecycle"),
		now:        time.Now,
		compile:    reminder.Compile,
		state:      StateUninitialized,
		permission: notification.PermissionUnknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount starts the session: check permission, load preferences, reconcile.
// An unknown permission is asked for once; a denial leaves the controller
// inert until RequestPermission. Calling Mount again is a no-op.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.state = StateCheckingPermission
	c.mu.Unlock()

	status := c.gate.Check(ctx)
	if status == notification.PermissionUnknown {
		status = c.gate.Request(ctx)
	}
	if !c.admit(status) {
		return
	}
	c.load(ctx)
}

// RequestPermission is the explicit retry out of PermissionDenied.
func (c *Controller) RequestPermission(ctx context.Context) notification.PermissionStatus {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	status := c.gate.Request(ctx)
	switch state {
	case StateUninitialized, StatePermissionDenied:
		if c.admit(status) {
			c.load(ctx)
		}
	default:
		if status != notification.PermissionGranted {
			c.admit(status)
			break
		}
		c.mu.Lock()
		c.permission = status
		c.mu.Unlock()
	}
	return status
}

// PreferencesChanged reconciles against a document the remote store has
// already acknowledged.
func (c *Controller) PreferencesChanged(ctx context.Context, prefs reminder.Preferences) {
	c.store.Set(prefs)
	c.reconcile(ctx, prefs)
}

// UpdatePreferences writes a partial document to the remote store and, once
// it is acknowledged, reconciles against the echoed document.
func (c *Controller) UpdatePreferences(ctx context.Context, patch preferences.Patch) (reminder.Preferences, error) {
	prefs, err := c.store.Update(ctx, patch)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPreferenceUpdate, err)
		c.logger.Error("Preference update failed", "error", err)
		return reminder.Preferences{}, err
	}
	c.reconcile(ctx, prefs)
	return prefs, nil
}

// Resync re-checks permission and runs a pass against the cached preferences,
// loading them first if the initial fetch failed. A revoked permission parks
// the controller in PermissionDenied.
func (c *Controller) Resync(ctx context.Context) {
	c.mu.Lock()
	ready := c.state == StateIdle || c.state == StateReconciling
	c.mu.Unlock()
	if !ready {
		return
	}
	if !c.admit(c.gate.Check(ctx)) {
		return
	}
	c.load(ctx)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:            c.state,
		Permission:       c.permission,
		LastReconciledAt: c.lastReconciledAt,
		Scheduled:        append([]int{}, c.scheduled...),
		Passes:           c.passes,
		Queued:           c.pending != nil,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// admit records a permission observation. Anything but granted drops a
// queued pass and moves the controller to PermissionDenied. A grant only
// changes the state on the way out of the permission check.
func (c *Controller) admit(status notification.PermissionStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admitLocked(status)
}

func (c *Controller) admitLocked(status notification.PermissionStatus) bool {
	c.permission = status
	if status != notification.PermissionGranted {
		c.state = StatePermissionDenied
		c.pending = nil
		c.logger.Warn("Notification permission not granted, reminders disabled", "status", status)
		return false
	}
	switch c.state {
	case StateUninitialized, StateCheckingPermission, StatePermissionDenied:
		c.state = StatePermissionGranted
	}
	return true
}

func (c *Controller) load(ctx context.Context) {
	c.mu.Lock()
	if c.state == StatePermissionGranted || c.state == StateIdle {
		c.state = StateLoadingPreferences
	}
	c.mu.Unlock()

	prefs, err := c.store.Load(ctx)

	c.mu.Lock()
	if c.state == StateLoadingPreferences {
		c.state = StateIdle
	}
	if err != nil {
		c.lastErr = fmt.Errorf("%w: %w", ErrPreferenceFetch, err)
		ReconcilePasses.WithLabelValues("fetch_error").Inc()
		queued := c.pending
		c.pending = nil
		c.mu.Unlock()
		c.logger.Error("Failed to load notification preferences", "error", err)
		if queued != nil {
			c.reconcile(ctx, *queued)
		}
		return
	}
	c.mu.Unlock()

	c.reconcile(ctx, prefs)
}

func (c *Controller) reconcile(ctx context.Context, prefs reminder.Preferences) {
	c.mu.Lock()
	switch {
	case c.state == StateLoadingPreferences || c.running:
		if c.pending != nil {
			CoalescedRequests.Inc()
		}
		c.pending = &prefs
		c.mu.Unlock()
		return
	case c.state != StateIdle:
		state := c.state
		c.mu.Unlock()
		c.logger.Info("Skipping reconciliation", "state", state)
		return
	}
	c.running = true
	c.state = StateReconciling
	if c.pending != nil {
		prefs = *c.pending
		c.pending = nil
	}
	c.mu.Unlock()

	for {
		status := c.gate.Check(ctx)
		c.mu.Lock()
		if c.state != StateReconciling || !c.admitLocked(status) {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.pass(ctx, prefs)

		c.mu.Lock()
		if c.state != StateReconciling {
			c.running = false
			c.pending = nil
			c.mu.Unlock()
			return
		}
		if c.pending == nil {
			c.running = false
			c.state = StateIdle
			c.mu.Unlock()
			return
		}
		prefs = *c.pending
		c.pending = nil
		c.mu.Unlock()
	}
}

// pass replaces the whole schedule: compile, cancel, then schedule. A cancel
// failure is recorded but does not stop the new schedule from being set.
func (c *Controller) pass(ctx context.Context, prefs reminder.Preferences) {
	ctx, span := c.tracer.Start(ctx, "reminders.reconcile")
	defer span.End()
	timer := prometheus.NewTimer(ReconcileLatency)
	defer timer.ObserveDuration()

	now := c.now()
	descriptors := c.compile(prefs, now)
	span.SetAttributes(
		attribute.Bool("reminders.enabled", prefs.Enabled),
		attribute.Int("reminders.count", len(descriptors)),
	)

	var cancelErr error
	if prefs.Enabled {
		cancelErr = c.dispatcher.CancelAll(ctx)
	} else {
		cancelErr = c.dispatcher.Purge(ctx)
	}
	if cancelErr != nil {
		span.RecordError(cancelErr)
		c.logger.Warn("Cancel failed, scheduling anyway", "error", cancelErr)
	}

	scheduleErr := c.dispatcher.ScheduleAll(ctx, descriptors)

	outcome := "ok"
	c.mu.Lock()
	c.passes++
	switch {
	case scheduleErr != nil:
		outcome = "schedule_error"
		c.lastErr = scheduleErr
		c.scheduled = nil
	case cancelErr != nil:
		outcome = "cancel_error"
		c.lastErr = cancelErr
		c.scheduled = reminder.IDs(descriptors)
		c.lastReconciledAt = now
	default:
		c.lastErr = nil
		c.scheduled = reminder.IDs(descriptors)
		c.lastReconciledAt = now
	}
	scheduled := append([]int{}, c.scheduled...)
	c.mu.Unlock()

	ReconcilePasses.WithLabelValues(outcome).Inc()
	ScheduledReminders.Set(float64(len(scheduled)))

	if scheduleErr != nil {
		span.RecordError(scheduleErr)
		span.SetStatus(codes.Error, "schedule failed")
		c.logger.Error("Reconciliation failed", "error", scheduleErr)
	} else {
		c.logger.Info("Reconciled reminders", "count", len(scheduled), "enabled", prefs.Enabled)
	}

	if c.events != nil {
		data := notification.ReconciledData{Scheduled: scheduled}
		if scheduleErr != nil {
			data.Error = scheduleErr.Error()
		}
		if err := c.events.Publish(ctx, notification.EventReconciled, data); err != nil {
			c.logger.Warn("Failed to publish reconcile event", "error", err)
		}
	}
}
