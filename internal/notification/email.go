package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/sapliy/reminder-engine/internal/reminder"
)

const defaultFromEmail = "onboarding@resend.dev"

// EmailService handles sending emails via Resend
type EmailService struct {
	client    *resend.Client
	fromEmail string
}

func NewEmailService(apiKey, from string) *EmailService {
	if from == "" {
		from = defaultFromEmail
	}
	return &EmailService{
		client:    resend.NewClient(apiKey),
		fromEmail: from,
	}
}

// SendEmail sends a transactional email
func (s *EmailService) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	return nil
}

const reminderEmailLayout = `<!DOCTYPE html>
<html>
<head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <style>
        body { background-color: #f6f9fc; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; font-size: 16px; line-height: 1.5; margin: 0; padding: 0; }
        .main { background: #ffffff; border-radius: 8px; border: 1px solid #e1e9ee; margin: 24px auto; max-width: 580px; padding: 20px; }
        h1 { font-size: 22px; font-weight: 700; margin: 0 0 16px 0; color: #32325d; }
        p { margin: 0 0 16px 0; color: #525f7f; }
        .meta { color: #8898aa; font-size: 12px; }
    </style>
</head>
<body>
    <div class="main">
        <h1>{{.Title}}</h1>
        <p>{{.Body}}</p>
        <p class="meta">{{.Category}} &middot; {{.TriggerAt.Format "Mon Jan 2 15:04"}}</p>
    </div>
</body>
</html>`

var reminderEmail = template.Must(template.New("reminder").Parse(reminderEmailLayout))

// RenderReminderEmail renders the HTML body mailed for a fired reminder.
func RenderReminderEmail(d reminder.Descriptor) (string, error) {
	var buf bytes.Buffer
	if err := reminderEmail.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render reminder email: %w", err)
	}
	return buf.String(), nil
}
