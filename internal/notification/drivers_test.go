package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

type mockMailer struct {
	to, subject, html string
}

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	m.to, m.subject, m.html = to, subject, htmlBody
	return nil
}

func TestEmailDriver_Send(t *testing.T) {
	mailer := &mockMailer{}
	driver := NewEmailDriver(mailer, "user@example.com")

	d := reminder.Descriptor{
		ID:        1001,
		Category:  reminder.CategoryMeal,
		Title:     "Time for breakfast",
		Body:      "Log <breakfast> & enjoy.",
		TriggerAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	if err := driver.Send(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mailer.to != "user@example.com" || mailer.subject != "Time for breakfast" {
		t.Errorf("unexpected envelope to=%q subject=%q", mailer.to, mailer.subject)
	}
	if !strings.Contains(mailer.html, "Log &lt;breakfast&gt; &amp; enjoy.") {
		t.Errorf("body not escaped: %s", mailer.html)
	}
	if !strings.Contains(mailer.html, "Tue Mar 10 08:00") {
		t.Errorf("trigger time missing: %s", mailer.html)
	}
}

func TestDriverRegistry(t *testing.T) {
	r := NewDriverRegistry()
	r.Register(&MockDriver{ChannelValue: Log})
	r.Register(&MockDriver{ChannelValue: Email})

	all := r.All()
	if len(all) != 2 || all[0].Channel() != Email || all[1].Channel() != Log {
		t.Errorf("drivers not ordered by channel")
	}
}
