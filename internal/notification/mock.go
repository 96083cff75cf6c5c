package notification

import (
	"context"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

// MockFacility is a Facility whose behaviour is supplied per test. Unset
// funcs return zero values.
type MockFacility struct {
	CheckPermissionsFunc   func(ctx context.Context) (PermissionStatus, error)
	RequestPermissionsFunc func(ctx context.Context) (PermissionStatus, error)
	ScheduleFunc           func(ctx context.Context, batch []reminder.Descriptor) error
	PendingFunc            func(ctx context.Context) ([]reminder.Descriptor, error)
	CancelFunc             func(ctx context.Context, ids []int) error
}

func (m *MockFacility) CheckPermissions(ctx context.Context) (PermissionStatus, error) {
	if m.CheckPermissionsFunc == nil {
		return PermissionGranted, nil
	}
	return m.CheckPermissionsFunc(ctx)
}

func (m *MockFacility) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	if m.RequestPermissionsFunc == nil {
		return PermissionGranted, nil
	}
	return m.RequestPermissionsFunc(ctx)
}

func (m *MockFacility) Schedule(ctx context.Context, batch []reminder.Descriptor) error {
	if m.ScheduleFunc == nil {
		return nil
	}
	return m.ScheduleFunc(ctx, batch)
}

func (m *MockFacility) Pending(ctx context.Context) ([]reminder.Descriptor, error) {
	if m.PendingFunc == nil {
		return nil, nil
	}
	return m.PendingFunc(ctx)
}

func (m *MockFacility) Cancel(ctx context.Context, ids []int) error {
	if m.CancelFunc == nil {
		return nil
	}
	return m.CancelFunc(ctx, ids)
}

type MockDriver struct {
	ChannelValue Channel
	SendFunc     func(ctx context.Context, d reminder.Descriptor) error
}

func (m *MockDriver) Channel() Channel {
	return m.ChannelValue
}

func (m *MockDriver) Send(ctx context.Context, d reminder.Descriptor) error {
	if m.SendFunc == nil {
		return nil
	}
	return m.SendFunc(ctx, d)
}
