package notification

import (
	"context"
	"sync"

	"github.com/sapliy/reminder-engine/pkg/observability"
)

// PermissionGate is the single chokepoint in front of the facility. Nothing may
// schedule or cancel until the gate has observed PermissionGranted.
type PermissionGate struct {
	platform PlatformCapability
	facility Facility
	logger   *observability.Logger

	mu   sync.RWMutex
	last PermissionStatus
}

func NewPermissionGate(platform PlatformCapability, facility Facility, logger *observability.Logger) *PermissionGate {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PermissionGate{
		platform: platform,
		facility: facility,
		logger:   logger,
		last:     PermissionUnknown,
	}
}

// Check queries the current permission. Unsupported platforms always resolve
// to denied without touching the facility; facility errors resolve to unknown.
func (g *PermissionGate) Check(ctx context.Context) PermissionStatus {
	if !g.platform.IsNative() {
		return g.observe(PermissionDenied)
	}
	status, err := g.facility.CheckPermissions(ctx)
	if err != nil {
		g.logger.Warn("Permission check failed", "error", err)
		return g.observe(PermissionUnknown)
	}
	return g.observe(normalize(status, PermissionUnknown))
}

// Request asks the platform for permission. It never returns unknown.
func (g *PermissionGate) Request(ctx context.Context) PermissionStatus {
	if !g.platform.IsNative() {
		return g.observe(PermissionDenied)
	}
	status, err := g.facility.RequestPermissions(ctx)
	if err != nil {
		g.logger.Warn("Permission request failed", "error", err)
		return g.observe(PermissionDenied)
	}
	return g.observe(normalize(status, PermissionDenied))
}

// Granted reports whether the last observation was PermissionGranted.
func (g *PermissionGate) Granted() bool {
	return g.Last() == PermissionGranted
}

func (g *PermissionGate) Last() PermissionStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

func (g *PermissionGate) observe(status PermissionStatus) PermissionStatus {
	g.mu.Lock()
	g.last = status
	g.mu.Unlock()
	return status
}

func normalize(status, fallback PermissionStatus) PermissionStatus {
	switch status {
	case PermissionGranted, PermissionDenied:
		return status
	}
	return fallback
}
