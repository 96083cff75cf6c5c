package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

// DefaultUpdatesTopic carries acknowledged preference documents.
const DefaultUpdatesTopic = "notification-preferences.updated"

// UpdatedEvent is published by the preferences service after a write.
type UpdatedEvent struct {
	UserID      string               `json:"userId"`
	Preferences reminder.Preferences `json:"preferences"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// MessageSource is satisfied by messaging.KafkaConsumer.
type MessageSource interface {
	Consume(ctx context.Context, handler func(key string, value []byte) error)
}

// UpdateConsumer feeds acknowledged documents for one user into the session
// store and then to onChange.
type UpdateConsumer struct {
	source   MessageSource
	store    *Store
	userID   string
	onChange func(ctx context.Context, prefs reminder.Preferences)
	logger   *observability.Logger
}

func NewUpdateConsumer(source MessageSource, store *Store, userID string, onChange func(ctx context.Context, prefs reminder.Preferences), logger *observability.Logger) *UpdateConsumer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &UpdateConsumer{
		source:   source,
		store:    store,
		userID:   userID,
		onChange: onChange,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (c *UpdateConsumer) Run(ctx context.Context) {
	c.source.Consume(ctx, func(key string, value []byte) error {
		return c.Handle(ctx, key, value)
	})
}

// Handle applies one message. Events for other users are ignored.
func (c *UpdateConsumer) Handle(ctx context.Context, key string, value []byte) error {
	var evt UpdatedEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("failed to decode preference update: %w", err)
	}
	if evt.UserID == "" {
		evt.UserID = key
	}
	if c.userID != "" && evt.UserID != c.userID {
		return nil
	}

	c.store.Set(evt.Preferences)
	c.logger.Info("Preference update received", "user_id", evt.UserID, "updated_at", evt.UpdatedAt)
	if c.onChange != nil {
		c.onChange(ctx, evt.Preferences)
	}
	return nil
}
