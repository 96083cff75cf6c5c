package notification

import (
	"context"
	"sort"

	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

// Driver shows a fired notification to the user on one channel.
type Driver interface {
	Send(ctx context.Context, d reminder.Descriptor) error
	Channel() Channel
}

// LogDriver writes fired notifications to the structured log. It is always
// registered so a headless deployment still has a visible delivery path.
type LogDriver struct {
	logger *observability.Logger
}

func NewLogDriver(logger *observability.Logger) *LogDriver {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &LogDriver{logger: logger}
}

func (d *LogDriver) Channel() Channel {
	return Log
}

func (d *LogDriver) Send(ctx context.Context, desc reminder.Descriptor) error {
	d.logger.WithContext(ctx).Info("Reminder fired",
		"id", desc.ID,
		"category", desc.Category,
		"title", desc.Title,
		"body", desc.Body,
	)
	return nil
}

// Mailer sends one transactional email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// EmailDriver mirrors fired reminders to a mailbox.
type EmailDriver struct {
	mailer    Mailer
	recipient string
}

func NewEmailDriver(mailer Mailer, recipient string) *EmailDriver {
	return &EmailDriver{mailer: mailer, recipient: recipient}
}

func (d *EmailDriver) Channel() Channel {
	return Email
}

func (d *EmailDriver) Send(ctx context.Context, desc reminder.Descriptor) error {
	html, err := RenderReminderEmail(desc)
	if err != nil {
		return err
	}
	return d.mailer.SendEmail(ctx, d.recipient, desc.Title, html)
}

// DriverRegistry holds all available notification drivers.
type DriverRegistry struct {
	drivers map[Channel]Driver
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		drivers: make(map[Channel]Driver),
	}
}

func (r *DriverRegistry) Register(driver Driver) {
	r.drivers[driver.Channel()] = driver
}

// All returns the registered drivers ordered by channel name.
func (r *DriverRegistry) All() []Driver {
	channels := make([]string, 0, len(r.drivers))
	for c := range r.drivers {
		channels = append(channels, string(c))
	}
	sort.Strings(channels)

	out := make([]Driver, 0, len(channels))
	for _, c := range channels {
		out = append(out, r.drivers[Channel(c)])
	}
	return out
}
