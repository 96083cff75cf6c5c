package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

var (
	ErrPermissionNotGranted = errors.New("notification permission not granted")
	ErrSchedule             = errors.New("failed to schedule notifications")
	ErrCancel               = errors.New("failed to cancel notifications")
)

// Dispatcher is the only path from the engine to the facility. Preference
// driven reconciliation uses CancelAll followed by ScheduleAll: the schedule is
// replaced, never patched.
type Dispatcher struct {
	facility Facility
	gate     *PermissionGate
	adHocIDs reminder.AdHocIDs
	logger   *observability.Logger
}

func NewDispatcher(facility Facility, gate *PermissionGate, adHocIDs reminder.AdHocIDs, logger *observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if adHocIDs == nil {
		adHocIDs = reminder.NewSequenceIDs()
	}
	return &Dispatcher{
		facility: facility,
		gate:     gate,
		adHocIDs: adHocIDs,
		logger:   logger,
	}
}

// ScheduleAll hands the whole batch to the facility in one call. On failure
// nothing from the batch is considered scheduled.
func (d *Dispatcher) ScheduleAll(ctx context.Context, descriptors []reminder.Descriptor) error {
	if !d.gate.Granted() {
		return ErrPermissionNotGranted
	}
	if len(descriptors) == 0 {
		return nil
	}
	if err := d.facility.Schedule(ctx, descriptors); err != nil {
		ScheduleFailures.Inc()
		d.logger.Error("Failed to schedule notification batch", "count", len(descriptors), "error", err)
		return fmt.Errorf("%w: %w", ErrSchedule, err)
	}
	d.logger.Info("Scheduled notifications", "count", len(descriptors))
	return nil
}

// CancelAll cancels every pending preference-driven notification. One-off
// notifications in the ad-hoc id space are left alone.
func (d *Dispatcher) CancelAll(ctx context.Context) error {
	if !d.gate.Granted() {
		return ErrPermissionNotGranted
	}
	return d.cancelWhere(ctx, func(id int) bool { return !reminder.IsAdHoc(id) })
}

// Purge cancels every pending notification, ad-hoc ones included. It backs the
// top-level kill switch.
func (d *Dispatcher) Purge(ctx context.Context) error {
	if !d.gate.Granted() {
		return ErrPermissionNotGranted
	}
	return d.cancelWhere(ctx, func(int) bool { return true })
}

func (d *Dispatcher) cancelWhere(ctx context.Context, keep func(id int) bool) error {
	pending, err := d.facility.Pending(ctx)
	if err != nil {
		CancelFailures.Inc()
		d.logger.Error("Failed to list pending notifications", "error", err)
		return fmt.Errorf("%w: list pending: %w", ErrCancel, err)
	}
	ids := make([]int, 0, len(pending))
	for _, p := range pending {
		if keep(p.ID) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := d.facility.Cancel(ctx, ids); err != nil {
		CancelFailures.Inc()
		d.logger.Error("Failed to cancel pending notifications", "count", len(ids), "error", err)
		return fmt.Errorf("%w: %w", ErrCancel, err)
	}
	d.logger.Info("Cancelled pending notifications", "count", len(ids))
	return nil
}

// Pending lists what the facility currently holds.
func (d *Dispatcher) Pending(ctx context.Context) ([]reminder.Descriptor, error) {
	if !d.gate.Granted() {
		return nil, ErrPermissionNotGranted
	}
	return d.facility.Pending(ctx)
}

// ScheduleAdHoc schedules a one-off notification outside the preference
// driven set. Its id comes from the ad-hoc space and cannot collide with the
// canonical table.
func (d *Dispatcher) ScheduleAdHoc(ctx context.Context, title, body string, at time.Time, payload map[string]string) (reminder.Descriptor, error) {
	if !d.gate.Granted() {
		return reminder.Descriptor{}, ErrPermissionNotGranted
	}
	id, err := d.adHocIDs.NextID(ctx)
	if err != nil {
		return reminder.Descriptor{}, fmt.Errorf("%w: %w", ErrSchedule, err)
	}
	desc := reminder.Descriptor{
		ID:        id,
		Category:  reminder.CategoryAdHoc,
		Title:     title,
		Body:      body,
		TriggerAt: at,
		Payload:   payload,
	}
	if err := d.facility.Schedule(ctx, []reminder.Descriptor{desc}); err != nil {
		ScheduleFailures.Inc()
		return reminder.Descriptor{}, fmt.Errorf("%w: %w", ErrSchedule, err)
	}
	d.logger.Info("Scheduled ad-hoc notification", "id", id, "trigger_at", at)
	return desc, nil
}
