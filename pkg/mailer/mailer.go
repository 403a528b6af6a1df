package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/noah-isme/lead-lifecycle-api/pkg/config"
)

// Mailer delivers quotation documents to clients over SMTP.
type Mailer interface {
	SendQuotation(ctx context.Context, toEmail, clientName, leadID string, amount float64) error
}

// SMTPMailer implements Mailer against the configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTP builds an SMTP mailer. Returns a no-op mailer when no host is configured.
func NewSMTP(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return noopMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// SendQuotation emails the approved quotation summary to the client contact.
func (m *SMTPMailer) SendQuotation(ctx context.Context, toEmail, clientName, leadID string, amount float64) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Training quotation %s", leadID))
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Dear %s,\n\nPlease find your training quotation below.\n\nReference: %s\nTotal: %.2f\n\nRegards,\n%s",
		clientName, leadID, amount, m.cfg.FromName,
	))

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// noopMailer swallows sends when SMTP is not configured; the delivery channel
// is still recorded on the approval record.
type noopMailer struct{}

func (noopMailer) SendQuotation(context.Context, string, string, string, float64) error {
	return nil
}
