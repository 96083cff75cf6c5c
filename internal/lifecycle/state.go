package lifecycle

import (
	"time"

	"github.com/sapliy/reminder-engine/internal/notification"
)

type State string

const (
	StateUninitialized      State = "uninitialized"
	StateCheckingPermission State = "checking_permission"
	StatePermissionDenied   State = "permission_denied"
	StatePermissionGranted  State = "permission_granted"
	StateLoadingPreferences State = "loading_preferences"
	StateIdle               State = "idle"
	StateReconciling        State = "reconciling"
)

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State            State                         `json:"state"`
	Permission       notification.PermissionStatus `json:"permission"`
	LastError        string                        `json:"last_error,omitempty"`
	LastReconciledAt time.Time                     `json:"last_reconciled_at,omitempty"`
	Scheduled        []int                         `json:"scheduled"`
	Passes           int                           `json:"passes"`
	Queued           bool                          `json:"queued"`
}
