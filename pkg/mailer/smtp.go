package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/cems-project/cems-api/pkg/config"
)

// Notifier delivers a message to a recipient address. Implementations must be
// safe for concurrent use; delivery is best-effort from the caller's view.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg config.SMTPConfig
}

// NewSMTPNotifier constructs a notifier from SMTP settings.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Notify sends one message. It fails fast when SMTP is unconfigured so that
// callers can log and move on.
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if n.cfg.Host == "" || n.cfg.Username == "" || n.cfg.From == "" {
		return fmt.Errorf("smtp is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Builder{}
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// NopNotifier swallows messages. Used when SMTP is not configured.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, string, string, string) error { return nil }
