package notification

import (
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

type Channel string

const (
	Log   Channel = "log"
	Email Channel = "email"
)

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Delivery is one attempt to show a fired notification through a driver.
type Delivery struct {
	ID             string            `json:"id"`
	NotificationID int               `json:"notification_id"`
	Category       reminder.Category `json:"category"`
	Channel        Channel           `json:"channel"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Status         Status            `json:"status"`
	Error          string            `json:"error,omitempty"`
	FiredAt        time.Time         `json:"fired_at"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AdHocRequest is the body accepted for one-off notifications.
type AdHocRequest struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	TriggerAt time.Time         `json:"trigger_at"`
	Payload   map[string]string `json:"payload,omitempty"`
}
