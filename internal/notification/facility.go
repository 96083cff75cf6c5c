package notification

import (
	"context"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

// PermissionStatus is the platform permission to post local notifications.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionUnknown PermissionStatus = "unknown"
)

// Facility is the platform local-notification facility. The engine is its
// only writer.
type Facility interface {
	CheckPermissions(ctx context.Context) (PermissionStatus, error)
	RequestPermissions(ctx context.Context) (PermissionStatus, error)
	// Schedule registers the whole batch or nothing.
	Schedule(ctx context.Context, batch []reminder.Descriptor) error
	Pending(ctx context.Context) ([]reminder.Descriptor, error)
	Cancel(ctx context.Context, ids []int) error
}

// PlatformCapability reports whether local notifications exist on this
// platform at all.
type PlatformCapability interface {
	IsNative() bool
}

// StaticPlatform is a PlatformCapability fixed at construction.
type StaticPlatform bool

func (p StaticPlatform) IsNative() bool { return bool(p) }
