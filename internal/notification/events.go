package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sapliy/reminder-engine/internal/reminder"
)

// EventType represents the type of reminder event
type EventType string

const (
	// Delivered by the facility when a notification fires.
	EventReceived EventType = "reminder.received"
	// User tapped the notification or one of its actions.
	EventActionPerformed EventType = "reminder.action_performed"

	// Emitted after each reconciliation pass.
	EventReconciled EventType = "reminder.reconciled"
)

// DefaultEventsQueue is where reminder events are published.
const DefaultEventsQueue = "reminders.events"

// Event is the envelope for all reminder events
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ReceivedData describes a notification that fired.
type ReceivedData struct {
	Notification reminder.Descriptor `json:"notification"`
	FiredAt      time.Time           `json:"fired_at"`
}

// ActionData describes a user interaction with a fired notification.
type ActionData struct {
	NotificationID int               `json:"notification_id"`
	ActionID       string            `json:"action_id"`
	Payload        map[string]string `json:"payload,omitempty"`
}

// ReconciledData summarizes one reconciliation pass.
type ReconciledData struct {
	Scheduled []int  `json:"scheduled"`
	Error     string `json:"error,omitempty"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType EventType, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// ParseReceivedData parses the event data as ReceivedData
func (e *Event) ParseReceivedData() (*ReceivedData, error) {
	var data ReceivedData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// QueuePublisher is satisfied by messaging.RabbitMQClient.
type QueuePublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// EventPublisher forwards reminder events to a message queue.
type EventPublisher struct {
	queue QueuePublisher
	name  string
}

func NewEventPublisher(queue QueuePublisher, queueName string) *EventPublisher {
	if queueName == "" {
		queueName = DefaultEventsQueue
	}
	return &EventPublisher{queue: queue, name: queueName}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType EventType, data interface{}) error {
	evt, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.queue.Publish(ctx, p.name, body)
}
